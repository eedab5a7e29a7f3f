package importer

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-research/audience/internal/domain"
	"github.com/meridian-research/audience/internal/segments"
)

// fakeStore is an in-memory RecordStore with programmable failures.
type fakeStore struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscriber

	createErr   map[string]error // Create fails for these emails
	createPanic map[string]bool  // Create panics for these emails
	findErr     map[string]error // FindByEmail fails for these emails
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:        make(map[string]*domain.Subscriber),
		createErr:   make(map[string]error),
		createPanic: make(map[string]bool),
		findErr:     make(map[string]error),
	}
}

func (f *fakeStore) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.findErr[email]; err != nil {
		return nil, err
	}
	return f.subs[email], nil
}

func (f *fakeStore) Create(ctx context.Context, sub *domain.Subscriber) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPanic[sub.Email] {
		panic("store exploded")
	}
	if err := f.createErr[sub.Email]; err != nil {
		return err
	}
	f.subs[sub.Email] = sub
	return nil
}

func newTestPipeline(t *testing.T, st RecordStore) *Pipeline {
	t.Helper()
	norm, err := segments.NewNormalizer(segments.DefaultAliases())
	require.NoError(t, err)
	p := New(st, norm)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func assertInvariants(t *testing.T, res *domain.ImportResult) {
	t.Helper()
	assert.Equal(t, res.Total, res.Imported+res.Skipped, "imported + skipped must equal total")
	assert.LessOrEqual(t, res.Duplicates, res.Skipped, "duplicates are a subset of skipped")
}

func TestRunMixedPayload(t *testing.T) {
	payload := "firstName,email\n" +
		"Ada,ada@example.com\n" +
		",bad@example.com\n" +
		"Cleo,not-an-email\n"

	st := newFakeStore()
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{SkipDuplicates: true})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Duplicates)
	assertInvariants(t, res)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, domain.ImportError{Row: 3, Email: "bad@example.com", Error: "missing required fields"}, res.Errors[0])
	assert.Equal(t, domain.ImportError{Row: 4, Email: "not-an-email", Error: "invalid email format"}, res.Errors[1])

	require.Contains(t, st.subs, "ada@example.com")
}

func TestRunEmptyPayload(t *testing.T) {
	res := newTestPipeline(t, newFakeStore()).Run(context.Background(), "", Options{})
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.SegmentWarnings)
	assertInvariants(t, res)
}

func TestRunSkipsExistingSubscribers(t *testing.T) {
	st := newFakeStore()
	st.subs["ada@example.com"] = &domain.Subscriber{Email: "ada@example.com"}

	payload := "firstName,email\nAda,ada@example.com\nBo,bo@example.org\n"
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{SkipDuplicates: true})

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Duplicates)
	assert.Empty(t, res.Errors)
	assertInvariants(t, res)
}

func TestRunIntraFileDuplicates(t *testing.T) {
	payload := "firstName,email\n" +
		"Ada,ada@example.com\n" +
		"Ada Again,ADA@Example.com\n" + // same address, different case
		"Ada Thrice,ada@example.com\n"

	st := newFakeStore()
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{SkipDuplicates: true})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Duplicates)
	assertInvariants(t, res)

	// The earliest occurrence wins.
	assert.Equal(t, "Ada", st.subs["ada@example.com"].FirstName)
}

func TestRunWithoutSkipDuplicates(t *testing.T) {
	st := newFakeStore()
	st.subs["ada@example.com"] = &domain.Subscriber{Email: "ada@example.com", FirstName: "Old"}

	payload := "firstName,email\nAda,ada@example.com\n"
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{SkipDuplicates: false})

	// With the flag off the pipeline does not consult the store; the commit
	// outcome is whatever the store decides.
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 0, res.Duplicates)
	assert.Equal(t, "Ada", st.subs["ada@example.com"].FirstName)
}

func TestRunCommitFailureIsolation(t *testing.T) {
	st := newFakeStore()
	st.createErr["bo@example.org"] = errors.New("connection reset")

	payload := "firstName,email\n" +
		"Ada,ada@example.com\n" +
		"Bo,bo@example.org\n" +
		"Cleo,cleo@example.net\n"
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{SkipDuplicates: true})

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "connection reset", res.Errors[0].Error)
	assertInvariants(t, res)

	// The failed row stays out; its neighbors commit.
	assert.Contains(t, st.subs, "ada@example.com")
	assert.Contains(t, st.subs, "cleo@example.net")
	assert.NotContains(t, st.subs, "bo@example.org")
}

func TestRunCommitPanicContained(t *testing.T) {
	st := newFakeStore()
	st.createPanic["bo@example.org"] = true

	payload := "firstName,email\nAda,ada@example.com\nBo,bo@example.org\n"
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{})

	assert.Equal(t, 1, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, "commit panic")
	assertInvariants(t, res)
}

func TestRunDuplicateCheckFailureCountsAsError(t *testing.T) {
	st := newFakeStore()
	st.findErr["ada@example.com"] = errors.New("store timeout")

	payload := "firstName,email\nAda,ada@example.com\n"
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{SkipDuplicates: true})

	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 0, res.Duplicates)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "store timeout", res.Errors[0].Error)
	assertInvariants(t, res)
}

func TestRunSegmentWarningsDeduplicated(t *testing.T) {
	payload := "firstName,email,segments\n" +
		"Ada,ada@example.com,\"kols,VIP Customers\"\n" +
		"Bo,bo@example.org,vip-customers\n" +
		"Cleo,cleo@example.net,Platinum\n"

	st := newFakeStore()
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{})

	assert.Equal(t, 3, res.Imported)
	// "VIP Customers" and "vip-customers" normalize to the same key: one
	// warning, attributed to the first row that carried it.
	require.Len(t, res.SegmentWarnings, 2)
	assert.Equal(t, `row 2: unrecognized segment "VIP Customers"`, res.SegmentWarnings[0])
	assert.Equal(t, `row 4: unrecognized segment "Platinum"`, res.SegmentWarnings[1])

	// Unknown tokens never block an import and never reach the store.
	assert.Equal(t, []domain.CanonicalSegment{domain.SegmentKOLs}, st.subs["ada@example.com"].Segments)
	assert.Equal(t, []domain.CanonicalSegment{domain.SegmentAll}, st.subs["bo@example.org"].Segments)
}

func TestRunSubscriberShape(t *testing.T) {
	payload := "firstName,lastName,email,title,company,segments,language,subscribed,notes\n" +
		" Ada , Lovelace , ADA@Example.COM ,Director,Example Health,\"hcp, kols\",EN,false, note \n"

	st := newFakeStore()
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{})
	require.Equal(t, 1, res.Imported)

	sub := st.subs["ada@example.com"]
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, "Ada", sub.FirstName)
	assert.Equal(t, "Lovelace", sub.LastName)
	assert.Equal(t, "ada@example.com", sub.Email)
	assert.Equal(t, "Director", sub.Title)
	assert.Equal(t, "Example Health", sub.Company)
	assert.Equal(t, "note", sub.Notes)
	assert.Equal(t, "en", sub.Language)
	assert.Equal(t, []domain.CanonicalSegment{domain.SegmentHealthcareProv, domain.SegmentKOLs}, sub.Segments)
	assert.False(t, sub.Subscribed)
	assert.Equal(t, domain.SourceImported, sub.Source)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), sub.SubscribedAt)
}

func TestRunLanguageFallsBackToDefault(t *testing.T) {
	payload := "firstName,email,language\n" +
		"Ada,ada@example.com,klingon-language\n" +
		"Bo,bo@example.org,\n" +
		"Cleo,cleo@example.net,pt-BR\n"

	st := newFakeStore()
	res := newTestPipeline(t, st).Run(context.Background(), payload, Options{})
	require.Equal(t, 3, res.Imported)
	assert.Equal(t, "en", st.subs["ada@example.com"].Language)
	assert.Equal(t, "en", st.subs["bo@example.org"].Language)
	assert.Equal(t, "pt-br", st.subs["cleo@example.net"].Language)
}

func TestRunIdempotentWithSkipDuplicates(t *testing.T) {
	payload := "firstName,email\nAda,ada@example.com\nBo,bo@example.org\n"

	st := newFakeStore()
	p := newTestPipeline(t, st)

	first := p.Run(context.Background(), payload, Options{SkipDuplicates: true})
	assert.Equal(t, 2, first.Imported)

	second := p.Run(context.Background(), payload, Options{SkipDuplicates: true})
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Duplicates)
	assertInvariants(t, second)
	assert.Len(t, st.subs, 2)
}

func TestRunFanOutMatchesSequential(t *testing.T) {
	var b strings.Builder
	b.WriteString("firstName,email,segments\n")
	for i := 0; i < 200; i++ {
		email := "user" + strconv.Itoa(i) + "@example.com"
		if i%7 == 0 {
			email = "repeat@example.com" // intra-file duplicates
		}
		seg := "kols"
		if i%13 == 0 {
			seg = "mystery_segment"
		}
		b.WriteString("User " + strconv.Itoa(i) + "," + email + "," + seg + "\n")
	}
	payload := b.String()

	run := func(concurrency int) *domain.ImportResult {
		st := newFakeStore()
		st.createErr["user43@example.com"] = errors.New("connection reset")
		return newTestPipeline(t, st).Run(context.Background(), payload, Options{
			SkipDuplicates: true,
			Concurrency:    concurrency,
		})
	}

	sequential := run(1)
	assertInvariants(t, sequential)

	for _, workers := range []int{4, 16} {
		fanned := run(workers)
		assert.Equal(t, sequential, fanned, "concurrency %d must not change the report", workers)
	}
}
