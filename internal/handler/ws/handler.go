// Package ws owns the WebSocket leg of a connection: the upgrade, the read
// pump feeding the fabric and the write pump draining the slot's send queue.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/exhibit-live/exhibit/internal/adapter/pubsub"
	"github.com/exhibit-live/exhibit/internal/domain/model"
	"github.com/exhibit-live/exhibit/internal/domain/presentation"
)

// maxFrameBytes caps a single inbound WebSocket frame.
const maxFrameBytes = 4096

type WSHandler struct {
	logger     *slog.Logger
	store      *presentation.Store
	dispatcher pubsub.Dispatcher
	upgrader   websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, store *presentation.Store, dispatcher pubsub.Dispatcher) *WSHandler {
	return &WSHandler{
		logger:     logger,
		store:      store,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

// ServeHTTP upgrades a registered connection. The handle in the path was
// handed out by a join or create; anything that does not resolve to a
// registered slot is a plain 404.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	presentationID := chi.URLParam(r, "presentation")
	handle := chi.URLParam(r, "handle")

	pres, ok := h.store.Get(presentationID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if slot, ok := pres.Presenters().ByHandle(handle); ok {
		h.servePresenter(w, r, pres, slot)
		return
	}
	if slot, ok := pres.Users().ByHandle(handle); ok {
		h.serveUser(w, r, pres, slot)
		return
	}
	http.NotFound(w, r)
}

func (h *WSHandler) serveUser(w http.ResponseWriter, r *http.Request, pres *presentation.Presentation, slot *presentation.UserSlot) {
	send := slot.Bind()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	h.logger.Info("ws opened", "presentation", pres.ID(), "identity", slot.Identity, "role", "user")

	// The audience gets the presentation snapshot before anything else.
	if err := writeFrame(conn, model.UserInitial(pres.Title(), pres.SlideSettings())); err != nil {
		h.logger.Warn("ws initial frame failed", "err", err)
		return
	}

	quit := make(chan struct{})
	defer close(quit)
	frames, done := h.readPump(conn, quit)

	defer func() {
		if !pres.Users().Remove(slot) {
			// Already evicted by a takeover; nothing of ours left to remove.
			h.logger.Debug("slot already replaced", "identity", slot.Identity)
		}
		h.logger.Info("ws closed", "presentation", pres.ID(), "identity", slot.Identity, "role", "user")
	}()

	for {
		select {
		case <-slot.CloseSignal():
			// Taken over by a newer connection for the same identity. Tell
			// the client before hanging up.
			_ = writeFrame(conn, model.UserDisconnect(""))
			return

		case <-done:
			return

		case data := <-frames:
			inc, ok := h.decode(data, slot.Identity)
			if !ok {
				continue
			}
			if inc.User == nil {
				h.logger.Warn("presenter frame on user connection dropped", "identity", slot.Identity)
				continue
			}
			h.publish(r, pres, slot.Identity, slot.Handle, model.RoleUser, inc)

		case msg := <-send:
			if err := writeFrame(conn, msg); err != nil {
				h.logger.Warn("ws send failed", "identity", slot.Identity, "err", err)
				return
			}
		}
	}
}

func (h *WSHandler) servePresenter(w http.ResponseWriter, r *http.Request, pres *presentation.Presentation, slot *presentation.PresenterSlot) {
	send := slot.Bind()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	h.logger.Info("ws opened", "presentation", pres.ID(), "identity", slot.Identity, "role", "presenter")

	quit := make(chan struct{})
	defer close(quit)
	frames, done := h.readPump(conn, quit)

	defer func() {
		pres.Presenters().Remove(slot.Handle)
		h.logger.Info("ws closed", "presentation", pres.ID(), "identity", slot.Identity, "role", "presenter")
	}()

	for {
		select {
		case <-slot.CloseSignal():
			return

		case <-done:
			return

		case data := <-frames:
			inc, ok := h.decode(data, slot.Identity)
			if !ok {
				continue
			}
			if inc.Presenter == nil {
				h.logger.Warn("user frame on presenter connection dropped", "identity", slot.Identity)
				continue
			}
			h.publish(r, pres, slot.Identity, slot.Handle, model.RolePresenter, inc)

		case msg := <-send:
			if err := writeFrame(conn, msg); err != nil {
				h.logger.Warn("ws send failed", "identity", slot.Identity, "err", err)
				return
			}
		}
	}
}

// readPump moves inbound frames onto a channel so the serve loop can select
// across reads, the send queue and the close signal. The done channel closes
// when the socket read fails, which is also how a client hangup surfaces;
// quit releases the pump when the serve loop exits first.
func (h *WSHandler) readPump(conn *websocket.Conn, quit <-chan struct{}) (<-chan []byte, <-chan struct{}) {
	frames := make(chan []byte)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case frames <- data:
			case <-quit:
				return
			}
		}
	}()

	return frames, done
}

func (h *WSHandler) decode(data []byte, identity string) (model.IncomingMessage, bool) {
	var inc model.IncomingMessage
	if err := json.Unmarshal(data, &inc); err != nil {
		h.logger.Warn("undecodable frame dropped", "identity", identity, "err", err)
		return model.IncomingMessage{}, false
	}
	if !inc.Valid() {
		h.logger.Warn("invalid frame dropped", "identity", identity, "msg", inc.String())
		return model.IncomingMessage{}, false
	}
	return inc, true
}

func (h *WSHandler) publish(r *http.Request, pres *presentation.Presentation, identity, handle string, role model.Role, inc model.IncomingMessage) {
	err := h.dispatcher.Publish(r.Context(), model.IdentifiedIncoming{
		Presentation: pres.ID(),
		Identity:     identity,
		Handle:       handle,
		Role:         role,
		Message:      inc,
	})
	if err != nil {
		h.logger.Error("publish to fabric failed", "identity", identity, "err", err)
	}
}

func writeFrame[T any](conn *websocket.Conn, msg T) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
