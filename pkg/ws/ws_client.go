package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
)

// wsClient is the middleman between one websocket connection and the
// hub subscriber feeding it.
type wsClient struct {
	server *WsServer
	conn   *websocket.Conn
	sub    *hub.Subscriber

	teardownOnce sync.Once
}

// teardown is idempotent: either pump exiting releases the hub
// subscription and the device refcount exactly once.
func (c *wsClient) teardown() {
	c.teardownOnce.Do(func() {
		c.server.Hub.Unsubscribe(c.sub)
		c.server.Manager.Release(c.sub.DeviceID)
		c.conn.Close()
	})
}

// readPump drains the connection so close frames and pongs are
// processed; subscribers do not send control messages of their own.
func (c *wsClient) readPump() {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket read error",
					zap.String("subscriber_id", c.sub.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case env, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// dropped by the hub or unsubscribed
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(env); err != nil {
				logger.Warn("Websocket write error",
					zap.String("subscriber_id", c.sub.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
