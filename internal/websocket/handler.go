package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"xianyu-autosell/internal/events"
	"xianyu-autosell/internal/transport/httpdto"
	"xianyu-autosell/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const readTimeout = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	hub *Hub
	log *logger.Logger
}

func NewHandler(hub *Hub, log *logger.Logger) *Handler {
	return &Handler{hub: hub, log: log}
}

// Connect upgrades the request and streams the events of the account named
// by the account_id query parameter. Inbound frames only keep the
// connection alive.
func (h *Handler) Connect(c *gin.Context) {
	accountID := strings.TrimSpace(c.Query("account_id"))
	if accountID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("account_id is required", "INVALID_REQUEST"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade for account %s failed: %v", accountID, err)
		return
	}

	client := NewClient(conn, accountID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	h.hub.Subscribe(client, events.AccountChannel(accountID))
	go client.WriteLoop(ctx)
	h.log.Debugf("dashboard %s connected to account %s", client.ID, accountID)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}

	h.hub.Unregister(client)
	h.log.Debugf("dashboard %s disconnected", client.ID)
}
