package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-research/audience/internal/config"
	"github.com/meridian-research/audience/internal/domain"
	"github.com/meridian-research/audience/internal/importer"
	"github.com/meridian-research/audience/internal/mailer"
	"github.com/meridian-research/audience/internal/pkg/httputil"
	"github.com/meridian-research/audience/internal/pkg/logger"
	"github.com/meridian-research/audience/internal/progress"
	"github.com/meridian-research/audience/internal/segments"
	"github.com/meridian-research/audience/internal/store"
)

// Handlers holds the dependencies shared by all HTTP handlers.
type Handlers struct {
	cfg      *config.Config
	store    *store.Postgres
	pipeline *importer.Pipeline
	norm     *segments.Normalizer
	tracker  *progress.Tracker
	mailer   *mailer.Mailer
}

// NewHandlers wires the handler set. tracker and mail may be nil; the
// corresponding features degrade to no-ops.
func NewHandlers(cfg *config.Config, st *store.Postgres, pipe *importer.Pipeline, norm *segments.Normalizer, tracker *progress.Tracker, mail *mailer.Mailer) *Handlers {
	return &Handlers{
		cfg:      cfg,
		store:    st,
		pipeline: pipe,
		norm:     norm,
		tracker:  tracker,
		mailer:   mail,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status":  "healthy",
		"service": "audience",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

type subscribeRequest struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Segments  []string `json:"segments"`
	Language  string   `json:"language"`
}

// HandleSubscribe is the public signup endpoint used by the marketing site.
// It applies the same field rules as the bulk importer so the two entry
// points cannot drift apart.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	rec := domain.ImportRecord{
		"firstName": req.FirstName,
		"email":     req.Email,
	}
	if err := importer.ValidateRecord(rec); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	email := store.NormalizeEmail(req.Email)
	existing, err := h.store.FindByEmail(r.Context(), email)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if existing != nil {
		httputil.Conflict(w, "email already subscribed")
		return
	}

	segs, unknown := h.norm.Normalize(strings.Join(req.Segments, ","))
	if len(segs) == 0 {
		segs = segments.DefaultSet()
	}
	for _, tok := range unknown {
		logger.Warn("signup with unrecognized segment", "segment", tok)
	}

	lang := strings.ToLower(strings.TrimSpace(req.Language))
	if lang == "" {
		lang = domain.DefaultLanguage
	}

	now := time.Now()
	sub := &domain.Subscriber{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Language:     lang,
		Segments:     segs,
		Subscribed:   true,
		Source:       domain.SourceSignup,
		SubscribedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.Create(r.Context(), sub); err != nil {
		httputil.InternalError(w, err)
		return
	}

	if err := h.mailer.SendWelcome(r.Context(), sub); err != nil {
		// Signup succeeded; the welcome mail is best effort.
		logger.Error("welcome email failed", "email", sub.Email, "err", err)
	}

	httputil.Created(w, sub)
}
