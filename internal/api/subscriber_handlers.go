package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-research/audience/internal/domain"
	"github.com/meridian-research/audience/internal/pkg/httputil"
)

// HandleListSubscribers returns a page of subscribers, newest first.
// Query params: limit (default 100, max 500) and offset.
func (h *Handlers) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 100)
	offset := intQuery(r, "offset", 0)

	subs, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if subs == nil {
		subs = []*domain.Subscriber{}
	}

	httputil.OK(w, map[string]any{
		"subscribers": subs,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// HandleUnsubscribe marks a subscriber as unsubscribed by email.
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		httputil.BadRequest(w, "missing email")
		return
	}

	err := h.store.Unsubscribe(r.Context(), email)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.NotFound(w, "no subscribed record for that email")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

func intQuery(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
