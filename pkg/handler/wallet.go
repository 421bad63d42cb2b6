package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (h *Handler) GetWallet(c *gin.Context) {
	wrapOkJSON(c, map[string]interface{}{
		"data": h.service.Wallet.State(),
	})
}

// ReconnectWallet starts a new detection session and returns immediately.
func (h *Handler) ReconnectWallet(c *gin.Context) {
	h.service.Wallet.Restart(context.Background())
	wrapOkJSON(c, map[string]interface{}{
		"data": h.service.Wallet.State(),
	})
}

// StreamWallet pushes every wallet state change over a websocket until the client goes away.
func (h *Handler) StreamWallet(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("wallet stream upgrade failed")
		return
	}
	defer conn.Close()

	states, unsubscribe := h.service.Wallet.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case state := <-states:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(state); err != nil {
				logrus.WithError(err).Debug("wallet stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) GetBalance(c *gin.Context) {
	snap := h.service.Balance.Last()
	if c.Query("refresh") == "1" || snap.FetchedAt.IsZero() {
		snap = h.service.Balance.Snapshot(c.Request.Context())
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": snap,
	})
}

// GetTransfers lists recent token transfers of the paying contract, or of ?address=.
func (h *Handler) GetTransfers(c *gin.Context) {
	address := c.DefaultQuery("address", h.service.Config.PayingContract)
	if c.Query("refresh") != "1" && address == h.service.Config.PayingContract {
		wrapOkJSON(c, map[string]interface{}{
			"data": h.service.History.Recent(),
		})
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": h.service.History.RecentTransfers(c.Request.Context(), address),
	})
}
