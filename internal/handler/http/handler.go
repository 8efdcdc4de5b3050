// Package http is the plain-HTTP edge: presentation creation, audience join
// and the static pages, everything except the WebSocket leg itself.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/exhibit-live/exhibit/internal/domain/presentation"
	"github.com/exhibit-live/exhibit/internal/handler/ws"
	"github.com/exhibit-live/exhibit/internal/service"
	"github.com/exhibit-live/exhibit/web"
)

const (
	// maxCreateBody bounds the create form: a PEM public key plus titles.
	maxCreateBody = 4096
	// maxJoinBody bounds a raw join token.
	maxJoinBody = 2048
)

type Handler struct {
	logger *slog.Logger
	auther service.Auther
	store  *presentation.Store
	wsh    *ws.WSHandler
}

func NewHandler(logger *slog.Logger, auther service.Auther, store *presentation.Store, wsh *ws.WSHandler) *Handler {
	return &Handler{logger: logger, auther: auther, store: store, wsh: wsh}
}

// Router assembles the chi mux for the whole edge.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/new", h.create)
	r.Post("/join", h.join)
	r.Get("/ws/{presentation}/{handle}", h.wsh.ServeHTTP)

	web.Mount(r)
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// create registers a new presentation from the signed registration form.
// Verification failures answer 404 so the endpoint does not confirm whether
// an id exists; only an authenticated duplicate gets the honest 409.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCreateBody)
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("create rejected: unparseable form", "err", err)
		http.NotFound(w, r)
		return
	}

	req, err := h.auther.VerifyCreate(r.PostForm)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyExists) {
			http.Error(w, "presentation already exists", http.StatusConflict)
			return
		}
		http.NotFound(w, r)
		return
	}

	pres := presentation.New(req.ID, req.PresenterIdentity, req.Title, req.Encrypted, req.AuthKey)
	if err := h.store.Register(pres); err != nil {
		// Lost a race with a concurrent create for the same id.
		http.Error(w, "presentation already exists", http.StatusConflict)
		return
	}

	h.logger.Info("presentation registered",
		"presentation", req.ID, "title", req.Title, "creator", req.Creator)
	h.respondJSON(w, map[string]string{"presentation": req.ID})
}

// join verifies a join token and registers an unbound slot, handing back the
// WebSocket URL that will bind it. The presenter identity lands in the
// presenter registry, everyone else in the user registry.
func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	token, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJoinBody))
	if err != nil {
		h.logger.Warn("join rejected: unreadable body", "err", err)
		http.NotFound(w, r)
		return
	}

	data, err := h.auther.VerifyJoin(token)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	pres := data.Presentation
	handle := uuid.NewString()

	if data.Identity == pres.PresenterIdentity() {
		pres.Presenters().Insert(presentation.NewPresenterSlot(data.Identity, handle))
		h.logger.Info("presenter joined", "presentation", pres.ID(), "identity", data.Identity)
	} else {
		pres.Users().Insert(presentation.NewUserSlot(data.Identity, handle))
		h.logger.Info("user joined", "presentation", pres.ID(), "identity", data.Identity)
	}

	h.respondJSON(w, map[string]string{"url": "/ws/" + pres.ID() + "/" + handle})
}

func (h *Handler) respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "err", err)
	}
}
