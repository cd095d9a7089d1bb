package autosell_errors

import (
	"context"
	"errors"
	"net/http"
)

// Common errors
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Delivery errors
var (
	ErrAlreadyDelivered     = errors.New("already delivered")
	ErrDeliveryInProgress   = errors.New("delivery in progress")
	ErrNoMatchingRule       = errors.New("no matching rule")
	ErrNoContentConfigured  = errors.New("no content configured")
	ErrNoAPIConfigured      = errors.New("no api configured")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrUnknownDeliveryType  = errors.New("unknown delivery type")
	ErrAPIRequestFailed     = errors.New("api request failed")
	ErrResponseFieldMissing = errors.New("response field not found")
)

// Collaborator errors
var (
	ErrClientUnavailable      = errors.New("account client unavailable")
	ErrEmptyOrderDetail       = errors.New("empty order detail")
	ErrWorkflowAlreadyRunning = errors.New("workflow already executing")
)

// Kind groups an error into the operator-facing failure taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrNoContentConfigured),
		errors.Is(err, ErrNoAPIConfigured),
		errors.Is(err, ErrUnknownDeliveryType):
		return "configuration"

	case errors.Is(err, ErrInsufficientStock):
		return "exhausted"

	case errors.Is(err, ErrNoMatchingRule):
		return "no_match"

	case errors.Is(err, ErrAlreadyDelivered),
		errors.Is(err, ErrDeliveryInProgress),
		errors.Is(err, ErrWorkflowAlreadyRunning):
		return "duplicate"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrRateLimited):
		return "rejected"

	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"

	case errors.Is(err, ErrAPIRequestFailed),
		errors.Is(err, ErrResponseFieldMissing),
		errors.Is(err, ErrClientUnavailable),
		errors.Is(err, ErrEmptyOrderDetail):
		return "transient"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests

	case errors.Is(err, ErrAlreadyDelivered),
		errors.Is(err, ErrDeliveryInProgress):
		return http.StatusConflict

	case errors.Is(err, ErrNoMatchingRule),
		errors.Is(err, ErrNoContentConfigured),
		errors.Is(err, ErrNoAPIConfigured),
		errors.Is(err, ErrUnknownDeliveryType),
		errors.Is(err, ErrInsufficientStock):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrAPIRequestFailed),
		errors.Is(err, ErrResponseFieldMissing),
		errors.Is(err, ErrClientUnavailable),
		errors.Is(err, ErrEmptyOrderDetail):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
