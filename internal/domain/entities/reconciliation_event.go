package entities

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationEventType represents the type of reconciliation event
type ReconciliationEventType string

const (
	EventTypeEpisodeLinked       ReconciliationEventType = "episode_linked"
	EventTypeEpisodeCompleted    ReconciliationEventType = "episode_completed"
	EventTypeRiskScoreCalculated ReconciliationEventType = "risk_score_calculated"
)

// ReconciliationEvent is published to subscribers after linking or scoring
type ReconciliationEvent struct {
	ID        string                  `json:"id"`
	EventType ReconciliationEventType `json:"event_type"`
	ClaimID   string                  `json:"claim_id"`
	EpisodeID string                  `json:"episode_id,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	Data      map[string]interface{}  `json:"data,omitempty"`
}

// NewEpisodeEvent creates an event describing an episode change
func NewEpisodeEvent(eventType ReconciliationEventType, episode *Episode) *ReconciliationEvent {
	data := map[string]interface{}{
		"status":           string(episode.Status),
		"match_method":     string(episode.MatchMethod),
		"denial_count":     episode.DenialCount,
		"adjustment_count": episode.AdjustmentCount,
		"payment_amount":   episode.PaymentAmount,
	}
	if episode.RemittanceID != nil {
		data["remittance_id"] = *episode.RemittanceID
	}
	return &ReconciliationEvent{
		ID:        uuid.New().String(),
		EventType: eventType,
		ClaimID:   episode.ClaimID,
		EpisodeID: episode.ID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewRiskScoreEvent creates an event describing a calculated risk score
func NewRiskScoreEvent(score *RiskScore) *ReconciliationEvent {
	return &ReconciliationEvent{
		ID:        uuid.New().String(),
		EventType: EventTypeRiskScoreCalculated,
		ClaimID:   score.ClaimID,
		Timestamp: time.Now().UTC(),
		Data: map[string]interface{}{
			"risk_score_id": score.ID,
			"overall_score": score.OverallScore,
			"risk_level":    string(score.RiskLevel),
		},
	}
}
