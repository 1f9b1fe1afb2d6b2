package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and serves it as a hub client until
// the connection closes.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     originPatterns,
			InsecureSkipVerify: len(originPatterns) == 0,
		})
		if err != nil {
			hub.logger.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		NewClient(hub, conn).Run(r.Context())
	}
}
