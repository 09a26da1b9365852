package client

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardsync/pkg/types"
)

// Dial connects to a boardsync server, performs the join handshake, and
// returns a running facade. The read loop feeds every server frame through
// ApplyRemote until the connection closes; onClose (optional) receives the
// close code so callers can branch between retry and redirect.
func Dial(ctx context.Context, url, boardID, token string, opts Options, onClose func(code int, reason string)) (*Client, error) {
	raw, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	join := types.ClientRequest{Action: types.RequestJoin, BoardID: boardID, Token: token}
	if err := raw.WriteJSON(join); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	c := New(&wsConn{conn: raw}, opts)

	go func() {
		for {
			_, frame, err := raw.ReadMessage()
			if err != nil {
				code, reason := types.CloseNormal, ""
				if ce, ok := err.(*websocket.CloseError); ok {
					code, reason = ce.Code, ce.Text
				}
				if onClose != nil {
					onClose(code, reason)
				}
				_ = c.Close()
				return
			}
			if err := c.ApplyRemote(frame); err != nil {
				c.log.Debug("discarding malformed frame", zap.Error(err))
			}
		}
	}()
	return c, nil
}

// wsConn adapts a gorilla connection to the facade's Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) WriteJSON(v any) error { return w.conn.WriteJSON(v) }
func (w *wsConn) Close() error          { return w.conn.Close() }
