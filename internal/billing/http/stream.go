package billinghttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ledgerkite/ledgerkite/internal/docstore"
	"github.com/ledgerkite/ledgerkite/internal/mirror"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamDocuments pushes collection snapshots over a websocket. Each
// message is the full mirror state; the client replaces its local copy
// on every frame. Changing the query mid-stream is done by opening a
// new connection.
func (h *Handler) streamDocuments(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	companyID := r.URL.Query().Get("company_id")
	if companyID == "" {
		h.writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	q := docstore.Query{
		OrderBy:   r.URL.Query().Get("order_by"),
		Direction: r.URL.Query().Get("direction"),
		Limit:     limit,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}
	defer conn.Close()

	m := mirror.New(h.store, docstore.Path{CompanyID: companyID, Kind: kind})
	defer m.Close()
	if err := m.Start(r.Context(), q); err != nil {
		h.logger.Error("start mirror", slog.Any("error", err))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(streamWriteTimeout))
		return
	}

	states, stop := m.Watch()
	defer stop()

	// Read pump: discard client frames, detect the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeState(conn, m.State()); err != nil {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()
	for {
		select {
		case state, open := <-states:
			if !open {
				return
			}
			if err := h.writeState(conn, state); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) writeState(conn *websocket.Conn, state mirror.State) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(state); err != nil {
		h.logger.Debug("write snapshot", slog.Any("error", err))
		return err
	}
	return nil
}
