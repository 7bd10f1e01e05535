package entities

import "time"

// RemittanceProcessingStatus tracks ingestion progress of a remittance
type RemittanceProcessingStatus string

const (
	RemittanceStatusReceived   RemittanceProcessingStatus = "received"
	RemittanceStatusProcessing RemittanceProcessingStatus = "processing"
	RemittanceStatusProcessed  RemittanceProcessingStatus = "processed"
	RemittanceStatusFailed     RemittanceProcessingStatus = "failed"
)

// Remittance is a payer's payment/denial response for one or more claims
type Remittance struct {
	ID                 string                     `json:"id" db:"id"`
	ControlNumber      string                     `json:"control_number" db:"control_number"`
	ClaimControlNumber *string                    `json:"claim_control_number,omitempty" db:"claim_control_number"`
	PaymentAmount      float64                    `json:"payment_amount" db:"payment_amount"`
	PaymentDate        *time.Time                 `json:"payment_date,omitempty" db:"payment_date"`
	PayerID            *string                    `json:"payer_id,omitempty" db:"payer_id"`
	DenialReasons      []string                   `json:"denial_reasons" db:"denial_reasons"`
	AdjustmentReasons  []string                   `json:"adjustment_reasons" db:"adjustment_reasons"`
	ProcessingStatus   RemittanceProcessingStatus `json:"processing_status" db:"processing_status"`
	CreatedAt          time.Time                  `json:"created_at" db:"created_at"`
}

// IsProcessed reports whether ingestion of the remittance has finished
func (r *Remittance) IsProcessed() bool {
	return r.ProcessingStatus == RemittanceStatusProcessed
}

// HasClaimReference reports whether the remittance names the claim it answers
func (r *Remittance) HasClaimReference() bool {
	return nonBlank(r.ClaimControlNumber)
}

// HasPayer reports whether the remittance references a payer
func (r *Remittance) HasPayer() bool {
	return nonBlank(r.PayerID)
}
