package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
	"vitalwatch.dev/vitals-telemetry-service/pkg/ingest"
)

// WsServer serves the persistent event channel: one websocket per
// session, fed from the broadcast hub. Opening the first session for a
// device starts its ingestion loop, closing the last one stops it.
type WsServer struct {
	Hub      *hub.Hub
	Manager  *ingest.Manager
	upgrader websocket.Upgrader
}

func NewWsServer(h *hub.Hub, m *ingest.Manager) *WsServer {
	return &WsServer{
		Hub:     h,
		Manager: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the browser dashboard connects cross-origin in development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *WsServer) Setup(engine *gin.Engine) {
	engine.GET("/ws/devices/:device_id", s.ServeDevice)
}

func (s *WsServer) ServeDevice(c *gin.Context) {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)

	deviceID := c.Param("device_id")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.String("device_id", deviceID), zap.Error(err))
		return
	}

	if err := s.Manager.Acquire(deviceID); err != nil {
		logger.Error("Failed to start ingestion for device",
			zap.String("device_id", deviceID), zap.Error(err))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "ingestion unavailable"))
		conn.Close()
		return
	}

	sub := s.Hub.Subscribe(deviceID)

	cl := &wsClient{
		server: s,
		conn:   conn,
		sub:    sub,
	}
	go cl.writePump()
	go cl.readPump()
}
