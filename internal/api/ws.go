package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prudhvinik1/inkboard/internal/models"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	opTimeout      = 5 * time.Second
)

// Client -> server.
type clientMessage struct {
	Type    string         `json:"type"`
	Stroke  *StrokeRequest `json:"stroke,omitempty"`
	Confirm bool           `json:"confirm,omitempty"`
}

// Server -> client.
type snapshotMessage struct {
	Type   string               `json:"type"`
	Events []models.StrokeEvent `json:"events"`
}

type ackMessage struct {
	Type     string `json:"type"`
	StrokeID string `json:"stroke_id"`
	Seq      int64  `json:"seq"`
}

type clearedMessage struct {
	Type    string `json:"type"`
	Deleted int64  `json:"deleted"`
}

type presenceMessage struct {
	Type         string            `json:"type"`
	Participants []models.Presence `json:"participants"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsConn struct {
	ws          *websocket.Conn
	h           *Handler
	sessionID   string
	participant models.Participant
	log         *zap.Logger

	// replies are queued; snapshots keep only the newest
	send      chan any
	snapshots chan []models.StrokeEvent
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	p := participantFrom(r.Context())
	c := &wsConn{
		ws:          ws,
		h:           h,
		sessionID:   sessionFrom(r.Context()),
		participant: p,
		log:         h.log.With(zap.String("session_id", sessionFrom(r.Context())), zap.String("participant_id", p.ID)),
		send:        make(chan any, 32),
		snapshots:   make(chan []models.StrokeEvent, 1),
	}
	c.run(r.Context())
}

func (c *wsConn) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.ws.Close()

	sub, err := c.h.boards.Subscribe(ctx, c.sessionID, c.pushSnapshot)
	if err != nil {
		c.log.Error("failed to subscribe", zap.Error(err))
		c.ws.WriteJSON(errorMessage{Type: "error", Code: "INTERNAL", Message: "failed to subscribe"})
		return
	}
	defer sub.Close()

	c.touchPresence(ctx)
	defer c.leave()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop(ctx)
	}()

	c.readLoop(ctx)
	cancel()
	<-done
}

// pushSnapshot runs on the subscription goroutine, the only producer.
func (c *wsConn) pushSnapshot(events []models.StrokeEvent) {
	if events == nil {
		events = []models.StrokeEvent{}
	}
	select {
	case <-c.snapshots:
	default:
	}
	c.snapshots <- events
}

func (c *wsConn) enqueue(msg any) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("websocket send queue full, dropping message")
	}
}

func (c *wsConn) readLoop(ctx context.Context) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("websocket closed", zap.Error(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch msg.Type {
		case "stroke":
			c.handleStroke(ctx, msg.Stroke)
		case "clear":
			c.handleClear(ctx, msg.Confirm)
		case "heartbeat":
			c.handleHeartbeat(ctx)
		default:
			c.enqueue(errorMessage{Type: "error", Code: "UNKNOWN_TYPE", Message: "unknown message type " + msg.Type})
		}
	}
}

func (c *wsConn) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg any
		select {
		case <-ctx.Done():
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case events := <-c.snapshots:
			msg = snapshotMessage{Type: "snapshot", Events: events}
		case msg = <-c.send:
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(msg); err != nil {
			c.log.Debug("websocket write failed", zap.Error(err))
			// unblock readLoop
			c.ws.Close()
			return
		}
	}
}

func (c *wsConn) handleStroke(ctx context.Context, req *StrokeRequest) {
	if req == nil || len(req.Path) == 0 {
		c.enqueue(errorMessage{Type: "error", Code: "INVALID_REQUEST", Message: "stroke with a non-empty path is required"})
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	ev := req.event(c.participant)
	if err := c.h.boards.Append(opCtx, c.sessionID, ev); err != nil {
		c.replyError(err, "failed to append stroke")
		return
	}
	c.enqueue(ackMessage{Type: "ack", StrokeID: ev.ID.String(), Seq: ev.Seq})
}

func (c *wsConn) handleClear(ctx context.Context, confirm bool) {
	if !confirm {
		c.enqueue(errorMessage{Type: "error", Code: "CONFIRMATION_REQUIRED", Message: "clear requires confirm=true"})
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	deleted, err := c.h.boards.ClearAll(opCtx, c.sessionID, c.participant)
	if err != nil {
		c.replyError(err, "failed to clear whiteboard")
		return
	}
	c.enqueue(clearedMessage{Type: "cleared", Deleted: deleted})
}

func (c *wsConn) handleHeartbeat(ctx context.Context) {
	c.touchPresence(ctx)
	list, err := c.h.presence.ListPresence(ctx, c.sessionID)
	if err != nil {
		c.log.Warn("failed to list presence", zap.Error(err))
		return
	}
	if list == nil {
		list = []models.Presence{}
	}
	c.enqueue(presenceMessage{Type: "presence", Participants: list})
}

func (c *wsConn) touchPresence(ctx context.Context) {
	err := c.h.presence.SetPresence(ctx, &models.Presence{
		SessionID:     c.sessionID,
		ParticipantID: c.participant.ID,
		Name:          c.participant.Name,
		Role:          c.participant.Role,
	})
	if err != nil {
		c.log.Warn("failed to set presence", zap.Error(err))
	}
}

func (c *wsConn) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := c.h.presence.DeletePresence(ctx, c.sessionID, c.participant.ID); err != nil {
		c.log.Warn("failed to delete presence", zap.Error(err))
	}
}

func (c *wsConn) replyError(err error, msg string) {
	resp, clientErr := errFor(err)
	if !clientErr {
		c.log.Error(msg, zap.Error(err))
	}
	c.enqueue(errorMessage{Type: "error", Code: resp.Code, Message: resp.Message})
}
