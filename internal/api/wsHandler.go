package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/auth"
	"github.com/Purplemerit/notion-realtime/internal/chat"
	"github.com/Purplemerit/notion-realtime/internal/types"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// rejectDelay keeps the transport open long enough for the auth error frame
// to flush before teardown; a half-closed socket would drop it.
const rejectDelay = 100 * time.Millisecond

// extractToken pulls the bearer credential from the access_token cookie,
// falling back to the token query parameter. Cookie takes precedence.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func reject(conn *websocket.Conn, code, message string) {
	payload, err := types.Marshal(types.EventError, types.ErrorPayload{
		Message:       message,
		Code:          code,
		RequiresLogin: true,
	})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(rejectDelay))
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	time.Sleep(rejectDelay)
	conn.Close()
}

// ServeWS runs the connection lifecycle: upgrade, authenticate, register
// presence, replay, then hand the socket to the pumps. Replay completes
// before the read pump starts so a client never sends ahead of its own
// catch-up.
func ServeWS(hub *chat.Hub, verifier *auth.Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		token := extractToken(r)
		if token == "" {
			log.Println("[WS] Authentication failed: token is required")
			reject(conn, types.CodeTokenRequired, "Token is required")
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				reject(conn, types.CodeTokenExpired, "Invalid or expired token")
			} else {
				reject(conn, types.CodeTokenInvalid, "Invalid token")
			}
			return
		}

		client := chat.NewClient(hub, conn, identity)
		hub.Attach(client)

		go client.WritePump()
		hub.Replay(context.Background(), client)
		client.ReadPump()
	}
}
