package realtime

import (
	"net/http"
	"strings"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Handler upgrades /realtime?token=<jwt> requests and serves the subscription protocol.
type Handler struct {
	Hub *Hub
	// Authenticate resolves a bearer token to a user id.
	Authenticate func(token string) (uint, error)
	// InsecureSkipVerify disables the origin check. Development only.
	InsecureSkipVerify bool
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on websocket requests, so the token travels in the query.
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: h.InsecureSkipVerify})
	if err != nil {
		return
	}

	client := h.Hub.AddClient(userID, conn)
	defer h.Hub.RemoveClient(client)

	ctx := r.Context()
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		h.Hub.handle(client, msg)
	}
}
