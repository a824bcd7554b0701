package websocket

import (
	"net/http"
	"slices"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the connection, sends the current count returned
// by count, and then keeps the client subscribed to hub broadcasts.
// originPatterns limits which pages may connect; "*" allows any origin.
func HandleWebSocket(hub *Hub, count func() int, originPatterns []string) http.HandlerFunc {
	opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
	if slices.Contains(originPatterns, "*") {
		opts = &ws.AcceptOptions{InsecureSkipVerify: true}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			hub.logger.Warn("accept websocket", "remote", r.RemoteAddr, "error", err)
			return
		}

		NewClient(hub, conn).Run(r.Context(), NewCountMessage(count()))
	}
}
