// Package ws bridges a browser websocket to one console session.
package ws

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"eggmanager/internal/console"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Console is the part of a console session the bridge drives.
type Console interface {
	Events() <-chan console.Event
	Send(cmd string) error
	Close()
}

type Bridge struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewBridge(log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.Named("ws"),
	}
}

// Serve upgrades the request and relays between the client and session
// until either side goes away. The session is always closed on return.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, session Console) {
	defer session.Close()

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	go b.readPump(conn, session)
	b.writePump(conn, session)
}

// readPump forwards client commands. A client disconnect closes the session.
func (b *Bridge) readPump(conn *websocket.Conn, session Console) {
	defer session.Close()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.log.Debug("console client read error", zap.Error(err))
			}
			return
		}
		cmd, ok := parseClientCommand(data)
		if !ok {
			continue
		}
		if err := session.Send(cmd); err != nil {
			if errors.Is(err, console.ErrCommandBacklog) {
				b.log.Debug("console command dropped", zap.String("command", cmd))
				continue
			}
			return
		}
	}
}

func (b *Bridge) writePump(conn *websocket.Conn, session Console) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	events := session.Events()
	var last console.Event
	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, closeMessage(last))
				return
			}
			last = ev
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeMessage(last console.Event) []byte {
	if last.Type != console.EventTypeClosed || last.Reason == console.ReasonClosed {
		return websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	}
	// reason text is capped by the control frame size
	text := string(last.Reason)
	return websocket.FormatCloseMessage(websocket.CloseGoingAway, text)
}

// parseClientCommand accepts {"event":"send command","args":[cmd]} or a
// bare line of text.
func parseClientCommand(data []byte) (string, bool) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false
	}
	if f, err := console.ParseFrame(data); err == nil {
		if f.Event != console.EventSendCommand {
			return "", false
		}
		cmd, ok := f.StringArg(0)
		return cmd, ok && strings.TrimSpace(cmd) != ""
	}
	if strings.HasPrefix(text, "{") {
		return "", false
	}
	return text, true
}
