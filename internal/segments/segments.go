// Package segments canonicalizes free-text segment tags onto the closed
// vocabulary the record store accepts. It is the single source of truth for
// segment normalization: both the server import endpoint and the CLI import
// tool go through the same Normalizer.
package segments

import (
	"fmt"
	"strings"

	"github.com/meridian-research/audience/internal/domain"
)

// Normalizer resolves raw segment tokens against an alias table. The table is
// read-only after construction, so a Normalizer is safe for concurrent use.
type Normalizer struct {
	aliases map[string]domain.CanonicalSegment
}

// DefaultAliases returns the built-in alias table. Every canonical segment
// maps to itself, so already-canonical input passes through unchanged. The
// config file can extend this table without touching pipeline code.
func DefaultAliases() map[string]string {
	aliases := map[string]string{
		"everyone":              "all",
		"all_subscribers":       "all",
		"pharma":                "pharma_clients",
		"pharma_client":         "pharma_clients",
		"pharmaceutical_clients": "pharma_clients",
		"hospital_admin":        "hospital_admins",
		"hospital_administrators": "hospital_admins",
		"trial_participant":     "trial_participants",
		"clinical_trial_participants": "trial_participants",
		"market_research_leads": "market_research",
		"mr_leads":              "market_research",
		"kol":                   "kols",
		"key_opinion_leader":    "kols",
		"key_opinion_leaders":   "kols",
		"hcp":                   "healthcare_providers",
		"hcps":                  "healthcare_providers",
		"healthcare_professionals": "healthcare_providers",
		"providers":             "healthcare_providers",
		"pharma_cold":           "pharma_cold_leads",
		"cold_leads":            "pharma_cold_leads",
		"test":                  "test_list",
		"testing":               "test_list",
	}
	for _, c := range domain.CanonicalSegments() {
		aliases[string(c)] = string(c)
	}
	return aliases
}

// NewNormalizer builds a Normalizer from an alias table. Alias keys are run
// through the same key normalization applied to input tokens, so config
// entries like "Key Opinion Leaders" work as written. Every target must be a
// member of the canonical vocabulary.
func NewNormalizer(aliases map[string]string) (*Normalizer, error) {
	n := &Normalizer{aliases: make(map[string]domain.CanonicalSegment, len(aliases))}
	for alias, target := range aliases {
		seg := domain.CanonicalSegment(target)
		if !domain.IsCanonicalSegment(seg) {
			return nil, fmt.Errorf("alias %q maps to unknown segment %q", alias, target)
		}
		n.aliases[NormalizeKey(alias)] = seg
	}
	// Identity mappings are guaranteed even if the supplied table omits them.
	for _, c := range domain.CanonicalSegments() {
		n.aliases[string(c)] = c
	}
	return n, nil
}

// FromConfig builds a Normalizer from the built-in table extended (or
// overridden) by config-supplied aliases.
func FromConfig(extra map[string]string) (*Normalizer, error) {
	aliases := DefaultAliases()
	for alias, target := range extra {
		aliases[alias] = target
	}
	return NewNormalizer(aliases)
}

// NormalizeKey lowercases a token and collapses internal whitespace and
// hyphen runs to a single underscore: "Key Opinion-Leaders" -> "key_opinion_leaders".
func NormalizeKey(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	var b strings.Builder
	b.Grow(len(token))
	sep := false
	for _, r := range token {
		if r == ' ' || r == '\t' || r == '-' || r == '_' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize splits a raw comma-separated segments field, resolves each token
// and returns the recognized canonical segments with input-order-preserving
// de-duplication, plus the literal unrecognized tokens in input order.
//
// An empty result set means the caller should fall back to the default
// segment set; Normalize never applies the default itself.
func (n *Normalizer) Normalize(raw string) ([]domain.CanonicalSegment, []string) {
	var (
		out     []domain.CanonicalSegment
		unknown []string
		seen    = make(map[domain.CanonicalSegment]bool)
	)
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		seg, ok := n.aliases[NormalizeKey(token)]
		if !ok {
			unknown = append(unknown, token)
			continue
		}
		if !seen[seg] {
			seen[seg] = true
			out = append(out, seg)
		}
	}
	return out, unknown
}

// Resolve maps a single token to its canonical segment.
func (n *Normalizer) Resolve(token string) (domain.CanonicalSegment, bool) {
	seg, ok := n.aliases[NormalizeKey(token)]
	return seg, ok
}

// DefaultSet returns the segment set applied when no token is recognized.
func DefaultSet() []domain.CanonicalSegment {
	return []domain.CanonicalSegment{domain.SegmentAll}
}
