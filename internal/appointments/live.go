package appointments

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	liveWriteTimeout = 10 * time.Second
	livePingInterval = 30 * time.Second
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The portal frontend is served from a different origin than the API;
	// the JWT on the upgrade request is the access control.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Live handles GET /appointments/live, streaming the current appointment
// snapshot over a websocket. The full list is pushed on connect and again
// after every refresh cycle.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r)
	if !ok {
		http.Error(w, "missing patient context", http.StatusUnauthorized)
		return
	}

	sess := h.service.SignIn(r.Context(), id)
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "user_id", id.UserID)
		return
	}

	snapshots, unsubscribe := sess.View().Subscribe()
	defer unsubscribe()
	defer conn.Close()

	// Reader goroutine: the client never sends data, but reads surface
	// close frames and pings so a dropped client detaches its subscription.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if !h.writeSnapshot(conn, sess.View().Snapshot()) {
		return
	}

	pings := time.NewTicker(livePingInterval)
	defer pings.Stop()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if !h.writeSnapshot(conn, snap) {
				return
			}
		case <-pings.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeSnapshot(conn *websocket.Conn, recs []Record) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	if err := conn.WriteJSON(ListResponse{
		Appointments: h.decorate(recs),
		Count:        len(recs),
	}); err != nil {
		h.logger.Warn("websocket write failed", "error", err)
		return false
	}
	return true
}
