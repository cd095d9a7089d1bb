package handler

import (
	"xianyu-autosell/internal/transport/httpdto"
	autosell_errors "xianyu-autosell/pkg/errors"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, err error) {
	status := autosell_errors.HTTPStatus(err)
	resp := httpdto.NewErrorResponse(err.Error(), httpdto.ErrorCode(status))
	resp.Kind = autosell_errors.Kind(err)
	c.JSON(status, resp)
}
