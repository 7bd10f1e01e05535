package entities

import "time"

// EpisodeStatus represents the reconciliation state of an episode
type EpisodeStatus string

const (
	EpisodeStatusPending  EpisodeStatus = "PENDING"
	EpisodeStatusLinked   EpisodeStatus = "LINKED"
	EpisodeStatusComplete EpisodeStatus = "COMPLETE"
)

// MatchMethod records which strategy produced an episode
type MatchMethod string

const (
	MatchMethodControlNumber MatchMethod = "control_number"
	MatchMethodPayerDate     MatchMethod = "payer_date"
	MatchMethodManual        MatchMethod = "manual"
)

// Episode reconciles one claim with one remittance outcome.
// At most one episode exists per (ClaimID, RemittanceID).
type Episode struct {
	ID              string        `json:"id" db:"id"`
	ClaimID         string        `json:"claim_id" db:"claim_id"`
	RemittanceID    *string       `json:"remittance_id,omitempty" db:"remittance_id"`
	Status          EpisodeStatus `json:"status" db:"status"`
	MatchMethod     MatchMethod   `json:"match_method" db:"match_method"`
	LinkedAt        *time.Time    `json:"linked_at,omitempty" db:"linked_at"`
	PaymentAmount   float64       `json:"payment_amount" db:"payment_amount"`
	DenialCount     int           `json:"denial_count" db:"denial_count"`
	AdjustmentCount int           `json:"adjustment_count" db:"adjustment_count"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

func (s EpisodeStatus) rank() int {
	switch s {
	case EpisodeStatusPending:
		return 0
	case EpisodeStatusLinked:
		return 1
	case EpisodeStatusComplete:
		return 2
	}
	return -1
}

// IsValid reports whether s is a known status
func (s EpisodeStatus) IsValid() bool {
	return s.rank() >= 0
}

// CanTransitionTo reports whether moving from s to next keeps the
// PENDING -> LINKED -> COMPLETE order. Re-applying the current status is allowed.
func (s EpisodeStatus) CanTransitionTo(next EpisodeStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.rank() >= s.rank()
}
