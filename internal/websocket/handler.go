package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// Handler upgrades requests to WebSocket clients of hub. originPatterns lists
// the cross-origin hosts allowed besides the server's own; hello builds the
// first message each client receives.
func Handler(hub *Hub, originPatterns []string, hello func() Message) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, hello()).Run(r.Context())
	}
}
