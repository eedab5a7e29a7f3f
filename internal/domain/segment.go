package domain

// CanonicalSegment is one member of the fixed, closed set of subscriber tags
// the record store accepts. No free-text segment ever reaches the store; the
// segment normalizer maps input aliases onto this vocabulary.
type CanonicalSegment string

const (
	SegmentAll               CanonicalSegment = "all"
	SegmentPharmaClients     CanonicalSegment = "pharma_clients"
	SegmentHospitalAdmins    CanonicalSegment = "hospital_admins"
	SegmentTrialParticipants CanonicalSegment = "trial_participants"
	SegmentMarketResearch    CanonicalSegment = "market_research"
	SegmentKOLs              CanonicalSegment = "kols"
	SegmentHealthcareProv    CanonicalSegment = "healthcare_providers"
	SegmentPharmaColdLeads   CanonicalSegment = "pharma_cold_leads"
	SegmentTestList          CanonicalSegment = "test_list"
)

// CanonicalSegments returns the full vocabulary in a stable order.
func CanonicalSegments() []CanonicalSegment {
	return []CanonicalSegment{
		SegmentAll,
		SegmentPharmaClients,
		SegmentHospitalAdmins,
		SegmentTrialParticipants,
		SegmentMarketResearch,
		SegmentKOLs,
		SegmentHealthcareProv,
		SegmentPharmaColdLeads,
		SegmentTestList,
	}
}

// IsCanonicalSegment reports whether s is a member of the closed vocabulary.
func IsCanonicalSegment(s CanonicalSegment) bool {
	for _, c := range CanonicalSegments() {
		if s == c {
			return true
		}
	}
	return false
}
