package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/fanout"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientCommand is one frame sent by a realtime client.
type clientCommand struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// Realtime upgrades the connection and bridges fan-out topics to the client.
// Clients send subscribe-device / subscribe-patient / subscribe-room /
// unsubscribe-device frames; the server pushes vitals:update, alert:critical,
// and device:status-changed events for subscribed topics. A newly-subscribed
// client only sees events published after subscription.
func (rs *RestfulServer) Realtime(c *gin.Context) {
	logger := common.GetLoggerWith(
		common.LoggerNameRestfulServer,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPublish),
	)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	sub := rs.Broker.Subscribe()
	go rs.realtimeWritePump(conn, sub, logger)
	rs.realtimeReadPump(conn, sub, logger)
}

func (rs *RestfulServer) realtimeReadPump(conn *websocket.Conn, sub *fanout.Subscriber, logger *zap.Logger) {
	defer func() {
		rs.Broker.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			logger.Warn("Malformed realtime command", zap.Error(err))
			continue
		}

		switch cmd.Action {
		case "subscribe-device":
			rs.Broker.AddTopic(sub, fanout.DeviceTopic(cmd.ID))
		case "unsubscribe-device":
			rs.Broker.RemoveTopic(sub, fanout.DeviceTopic(cmd.ID))
		case "subscribe-patient":
			rs.Broker.AddTopic(sub, fanout.PatientTopic(cmd.ID))
		case "unsubscribe-patient":
			rs.Broker.RemoveTopic(sub, fanout.PatientTopic(cmd.ID))
		case "subscribe-room":
			rs.Broker.AddTopic(sub, fanout.RoomTopic(cmd.ID))
		default:
			logger.Warn("Unknown realtime action", zap.String("action", cmd.Action))
		}
	}
}

func (rs *RestfulServer) realtimeWritePump(conn *websocket.Conn, sub *fanout.Subscriber, logger *zap.Logger) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(wsWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
