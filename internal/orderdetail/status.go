package orderdetail

import (
	"strconv"
	"strings"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/domain/order"
)

// Lifecycle is the delivery-relevant state derived from a status code and its text.
type Lifecycle int

const (
	LifecycleOther Lifecycle = iota
	LifecyclePendingShipment
	LifecyclePendingReceipt
)

// Upstream status codes are unreliable, so the text is checked as well.
var (
	pendingShipmentMarkers = []string{"待发货", "请尽快发货", "买家已付款"}
	pendingReceiptMarkers  = []string{"待收货"}
)

// Resolve classifies a status. Pending shipment wins when both match.
func Resolve(code order.Status, text string) Lifecycle {
	switch {
	case code == order.StatusPendingShipment || containsAny(text, pendingShipmentMarkers):
		return LifecyclePendingShipment
	case code == order.StatusPendingReceipt || containsAny(text, pendingReceiptMarkers):
		return LifecyclePendingReceipt
	default:
		return LifecycleOther
	}
}

// Trigger maps a lifecycle state to the rule timing it fires.
func (l Lifecycle) Trigger() (autosell.TriggerOn, bool) {
	switch l {
	case LifecyclePendingShipment:
		return autosell.TriggerPaid, true
	case LifecyclePendingReceipt:
		return autosell.TriggerConfirmed, true
	default:
		return "", false
	}
}

func (l Lifecycle) String() string {
	switch l {
	case LifecyclePendingShipment:
		return "pending_shipment"
	case LifecyclePendingReceipt:
		return "pending_receipt"
	default:
		return "other"
	}
}

// Transition reports the trigger fired when an order moves from prev to next.
// Only entry into a qualifying state fires; staying in it does not.
func Transition(prev, next Lifecycle) (autosell.TriggerOn, bool) {
	if prev == next {
		return "", false
	}
	return next.Trigger()
}

// StatusText picks the display text: the payload title, then the enum name.
func StatusText(code order.Status, title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if t, ok := code.Text(); ok {
		return t
	}
	return order.UnknownStatusText
}

func parseStatus(s Scalar) order.Status {
	n, err := strconv.Atoi(s.String())
	if err != nil {
		return order.StatusUnknown
	}
	return order.Status(n)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
