package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardsync/internal/registry"
	"boardsync/internal/room"
	"boardsync/pkg/interfaces"
	"boardsync/pkg/protocol"
	"boardsync/pkg/types"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// Origin policy belongs to the deployment's proxy layer.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: handshakeTimeout,
}

// Handler upgrades HTTP requests and drives the join handshake and read
// pump for each connection.
type Handler struct {
	registry *registry.Registry
	identity interfaces.IdentityProvider
	log      *zap.Logger
}

func NewHandler(reg *registry.Registry, identity interfaces.IdentityProvider, log *zap.Logger) *Handler {
	return &Handler{registry: reg, identity: identity, log: log}
}

// HandleWebSocket upgrades the request and runs the connection to
// completion. The first frame must be a join request carrying a credential;
// a failed verification closes with an unauthorized status before any
// session exists.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := NewConnection(raw)

	join, err := h.readJoin(raw)
	if err != nil {
		_ = conn.CloseWithCode(types.CloseUnauthorized, "join required")
		return
	}

	ident, err := h.identity.Verify(r.Context(), join.Token)
	if err != nil {
		h.log.Info("credential rejected", zap.Error(err))
		_ = conn.CloseWithCode(types.CloseUnauthorized, "unauthorized")
		return
	}

	sess, rm, err := h.registry.Join(r.Context(), conn, join.BoardID, *ident)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrBoardNotFound):
			_ = conn.CloseWithCode(types.CloseBoardNotFound, "board not found")
		case errors.Is(err, registry.ErrAccessDenied):
			_ = conn.CloseWithCode(types.CloseUnauthorized, "access denied")
		default:
			h.log.Error("join failed", zap.String("board", join.BoardID), zap.Error(err))
			_ = conn.CloseWithCode(types.CloseNormal, "join failed")
		}
		return
	}

	h.readPump(raw, conn, sess, rm)
}

// readJoin reads and parses the handshake frame under a deadline.
func (h *Handler) readJoin(raw *websocket.Conn) (*types.ClientRequest, error) {
	if err := raw.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return nil, err
	}
	_, data, err := raw.ReadMessage()
	if err != nil {
		return nil, err
	}
	var req types.ClientRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.Action != types.RequestJoin || req.BoardID == "" {
		return nil, ErrJoinRequired
	}
	return &req, nil
}

// readPump decodes inbound frames until the connection dies. Malformed
// frames are discarded and the connection stays open; no error is echoed.
func (h *Handler) readPump(raw *websocket.Conn, conn *Connection, sess *room.Session, rm *room.Room) {
	defer func() {
		h.registry.Leave(rm, sess)
		_ = conn.Close()
	}()

	if err := raw.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return
	}
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("read error", zap.String("session", sess.ID), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(data, sess, rm)
	}
}

// dispatch routes one inbound frame: a JSON array is an action batch, a
// JSON object is a control request.
func (h *Handler) dispatch(data []byte, sess *room.Session, rm *room.Room) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return
	}
	switch trimmed[0] {
	case '[':
		actions, err := protocol.DecodeBatch(trimmed)
		if err != nil {
			h.log.Debug("discarding malformed batch",
				zap.String("session", sess.ID), zap.Error(err))
			return
		}
		if err := rm.Submit(sess, actions); err != nil {
			h.log.Debug("batch rejected", zap.String("session", sess.ID), zap.Error(err))
		}
	case '{':
		var req types.ClientRequest
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return
		}
		if req.Action == types.RequestRename && req.Name != "" {
			rm.Rename(req.Name)
		}
	}
}
