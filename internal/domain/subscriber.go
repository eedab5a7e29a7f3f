package domain

import "time"

// SubscriberSource records how a subscriber entered the list.
type SubscriberSource string

const (
	SourceImported SubscriberSource = "imported"
	SourceSignup   SubscriberSource = "signup"
)

// DefaultLanguage is used when the input supplies no recognizable language code.
const DefaultLanguage = "en"

// Subscriber represents a single newsletter recipient.
//
// Email is the unique key (case-insensitive, trimmed). Optional fields are
// always present as empty strings rather than omitted so downstream consumers
// see a stable shape. The import pipeline only ever creates subscribers;
// updates (unsubscribe, engagement) belong to other subsystems.
type Subscriber struct {
	ID            string             `json:"id" db:"id"`
	FirstName     string             `json:"firstName" db:"first_name"`
	LastName      string             `json:"lastName" db:"last_name"`
	Email         string             `json:"email" db:"email"`
	PersonalEmail string             `json:"personalEmail" db:"personal_email"`
	Mobile        string             `json:"mobile" db:"mobile"`
	Title         string             `json:"title" db:"title"`
	Company       string             `json:"company" db:"company"`
	Notes         string             `json:"notes" db:"notes"`
	Language      string             `json:"language" db:"language"`
	Segments      []CanonicalSegment `json:"segments" db:"segments"`
	Subscribed    bool               `json:"subscribed" db:"subscribed"`
	Source        SubscriberSource   `json:"source" db:"source"`

	SubscribedAt   time.Time  `json:"subscribedAt" db:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt" db:"unsubscribed_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}
