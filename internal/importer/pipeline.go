// Package importer implements the bulk subscriber ingestion pipeline: header
// canonicalization, tolerant CSV parsing, field validation, segment
// normalization, duplicate suppression and per-record commit isolation.
//
// The pipeline has no I/O baked in. The record store and the segment alias
// table are injected, so the HTTP endpoint and the CLI batch tool run the
// exact same logic instead of maintaining parallel reimplementations.
package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-research/audience/internal/domain"
	"github.com/meridian-research/audience/internal/pkg/logger"
	"github.com/meridian-research/audience/internal/segments"
)

// RecordStore is the persistence collaborator for the pipeline. FindByEmail
// returns (nil, nil) when no subscriber exists. Create must not partially
// apply on failure.
type RecordStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	Create(ctx context.Context, sub *domain.Subscriber) error
}

// Options control a single import run.
type Options struct {
	// SkipDuplicates routes rows whose email already exists (in the store, or
	// earlier in the same payload) to the duplicate counter instead of
	// committing them.
	SkipDuplicates bool

	// Concurrency bounds the number of in-flight store operations. Zero or
	// one means strictly sequential processing, the default backpressure
	// policy for rate-limited stores. Higher values fan out but the report
	// stays deterministic and input-ordered.
	Concurrency int
}

// Pipeline runs bulk subscriber imports against an injected record store.
type Pipeline struct {
	store RecordStore
	norm  *segments.Normalizer

	// Injectable for tests.
	now   func() time.Time
	newID func() string
}

// New creates a Pipeline bound to a record store and segment normalizer.
func New(store RecordStore, norm *segments.Normalizer) *Pipeline {
	return &Pipeline{
		store: store,
		norm:  norm,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// outcome is the single event each record contributes to the aggregate.
type outcome struct {
	row       int
	email     string
	imported  bool
	duplicate bool
	errMsg    string
	unknown   []string // unrecognized segment literals, input order
}

// Run processes the whole payload and always returns a complete report; it
// never fails past the per-record boundary. A commit failure on one row does
// not prevent later rows from being processed, and nothing is rolled back.
func (p *Pipeline) Run(ctx context.Context, payload string, opts Options) *domain.ImportResult {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	var (
		outcomes []*outcome
		claimed  = make(map[string]bool)
		sem      = make(chan struct{}, opts.Concurrency)
		wg       sync.WaitGroup
	)

	r := NewReader(payload)
	for {
		rec, row, ok := r.Next()
		if !ok {
			break
		}
		o := &outcome{row: row, email: strings.ToLower(strings.TrimSpace(rec["email"]))}
		outcomes = append(outcomes, o)

		if err := ValidateRecord(rec); err != nil {
			o.errMsg = err.Error()
			continue
		}

		// Intra-file repeats count as duplicates of the earliest validated
		// occurrence. Claiming happens here, in input order, so the winner is
		// deterministic even with fan-out.
		if opts.SkipDuplicates {
			if claimed[o.email] {
				o.duplicate = true
				continue
			}
			claimed[o.email] = true
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(rec domain.ImportRecord, o *outcome) {
			defer wg.Done()
			defer func() { <-sem }()
			p.process(ctx, rec, o, opts)
		}(rec, o)
	}
	wg.Wait()

	res := p.aggregate(outcomes)
	logger.Info("import run complete",
		"total", res.Total,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"duplicates", res.Duplicates,
		"errors", len(res.Errors),
	)
	return res
}

// process handles one validated record: duplicate check, segment
// normalization, commit. Failures of any kind stay inside this record.
func (p *Pipeline) process(ctx context.Context, rec domain.ImportRecord, o *outcome, opts Options) {
	defer func() {
		if r := recover(); r != nil {
			o.imported = false
			o.errMsg = fmt.Sprintf("commit panic: %v", r)
		}
	}()

	if opts.SkipDuplicates {
		existing, err := p.store.FindByEmail(ctx, o.email)
		if err != nil {
			o.errMsg = err.Error()
			return
		}
		if existing != nil {
			o.duplicate = true
			return
		}
	}

	segs, unknown := p.norm.Normalize(rec["segments"])
	o.unknown = unknown
	if len(segs) == 0 {
		segs = segments.DefaultSet()
	}

	if err := p.store.Create(ctx, p.buildSubscriber(rec, o.email, segs)); err != nil {
		o.errMsg = err.Error()
		return
	}
	o.imported = true
}

// languageShapeRegex matches base language codes like "en" or "pt-br".
var languageShapeRegex = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]{2,4})?$`)

// buildSubscriber maps a validated record onto the canonical subscriber
// shape. Optional fields become explicit empty strings, never omissions, and
// SubscribedAt is the moment of ingestion rather than anything in the file.
func (p *Pipeline) buildSubscriber(rec domain.ImportRecord, email string, segs []domain.CanonicalSegment) *domain.Subscriber {
	now := p.now()

	lang := strings.ToLower(strings.TrimSpace(rec["language"]))
	if !languageShapeRegex.MatchString(lang) {
		lang = domain.DefaultLanguage
	}

	return &domain.Subscriber{
		ID:            p.newID(),
		FirstName:     strings.TrimSpace(rec["firstName"]),
		LastName:      strings.TrimSpace(rec["lastName"]),
		Email:         email,
		PersonalEmail: strings.TrimSpace(rec["personalEmail"]),
		Mobile:        strings.TrimSpace(rec["mobile"]),
		Title:         strings.TrimSpace(rec["title"]),
		Company:       strings.TrimSpace(rec["company"]),
		Notes:         strings.TrimSpace(rec["notes"]),
		Language:      lang,
		Segments:      segs,
		Subscribed:    strings.TrimSpace(rec["subscribed"]) != "false",
		Source:        domain.SourceImported,
		SubscribedAt:  now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// aggregate folds per-record outcomes, in input order, into the final report.
// Unknown segment warnings are de-duplicated per distinct value per run and
// attributed to the first row that carried them.
func (p *Pipeline) aggregate(outcomes []*outcome) *domain.ImportResult {
	res := &domain.ImportResult{
		Errors:          []domain.ImportError{},
		SegmentWarnings: []string{},
	}
	warned := make(map[string]bool)

	for _, o := range outcomes {
		res.Total++
		switch {
		case o.imported:
			res.Imported++
		case o.duplicate:
			res.Skipped++
			res.Duplicates++
		default:
			res.Skipped++
			res.Errors = append(res.Errors, domain.ImportError{
				Row:   o.row,
				Email: o.email,
				Error: o.errMsg,
			})
		}
		for _, tok := range o.unknown {
			key := segments.NormalizeKey(tok)
			if warned[key] {
				continue
			}
			warned[key] = true
			res.SegmentWarnings = append(res.SegmentWarnings,
				fmt.Sprintf("row %d: unrecognized segment %q", o.row, tok))
		}
	}
	return res
}
