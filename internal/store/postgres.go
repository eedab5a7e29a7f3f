// Package store implements the subscriber record store on Postgres.
//
// The store is the only shared mutable resource the import pipeline touches.
// It exposes the collaborator contract the pipeline needs (find by normalized
// email, create without partial application) plus the listing and
// unsubscribe operations the back office uses.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/meridian-research/audience/internal/domain"
)

// Postgres provides database operations for subscribers.
type Postgres struct {
	db *sql.DB
}

// New creates a subscriber store backed by the given database handle.
func New(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// NormalizeEmail lowercases and trims an email for use as the unique key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const subscriberColumns = `id, first_name, last_name, email, personal_email, mobile,
	title, company, notes, language, segments, subscribed, source,
	subscribed_at, unsubscribed_at, created_at, updated_at`

// FindByEmail looks up a subscriber by normalized email. Returns (nil, nil)
// when no subscriber exists.
func (s *Postgres) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE email = $1`

	sub, err := scanSubscriber(s.db.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding subscriber: %w", err)
	}
	return sub, nil
}

// Create persists a new subscriber. The unique index on email makes creates
// atomic: on conflict nothing is written and the error surfaces to the caller.
func (s *Postgres) Create(ctx context.Context, sub *domain.Subscriber) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	sub.Email = NormalizeEmail(sub.Email)
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = now
	}

	query := `INSERT INTO subscribers (` + subscriberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.FirstName, sub.LastName, sub.Email, sub.PersonalEmail, sub.Mobile,
		sub.Title, sub.Company, sub.Notes, sub.Language, pq.Array(segmentStrings(sub.Segments)),
		sub.Subscribed, string(sub.Source),
		sub.SubscribedAt, sub.UnsubscribedAt, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating subscriber: %w", err)
	}
	return nil
}

// List returns subscribers ordered by subscription date, newest first.
func (s *Postgres) List(ctx context.Context, limit, offset int) ([]*domain.Subscriber, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + subscriberColumns + ` FROM subscribers
		ORDER BY subscribed_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Count returns the total number of subscriber records.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n)
	return n, err
}

// Unsubscribe marks a subscriber as unsubscribed. The import pipeline never
// calls this; it belongs to the back office and the public unsubscribe flow.
func (s *Postgres) Unsubscribe(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscribers SET subscribed = false, unsubscribed_at = NOW(), updated_at = NOW()
		WHERE email = $1 AND subscribed = true`, NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	sub := &domain.Subscriber{}
	var segs pq.StringArray
	var source string
	err := row.Scan(
		&sub.ID, &sub.FirstName, &sub.LastName, &sub.Email, &sub.PersonalEmail, &sub.Mobile,
		&sub.Title, &sub.Company, &sub.Notes, &sub.Language, &segs,
		&sub.Subscribed, &source,
		&sub.SubscribedAt, &sub.UnsubscribedAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sub.Source = domain.SubscriberSource(source)
	sub.Segments = make([]domain.CanonicalSegment, len(segs))
	for i, s := range segs {
		sub.Segments[i] = domain.CanonicalSegment(s)
	}
	return sub, nil
}

func segmentStrings(segs []domain.CanonicalSegment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = string(s)
	}
	return out
}
