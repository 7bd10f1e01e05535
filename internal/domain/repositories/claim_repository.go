package repositories

import (
	"context"
	"time"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// ClaimRepository defines the interface for claim data operations
type ClaimRepository interface {
	// GetByID retrieves a claim with its lines
	GetByID(ctx context.Context, id string) (*entities.Claim, error)

	// GetByIDs retrieves several claims; ids that do not resolve are omitted
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Claim, error)

	// FindByControlNumber returns every claim carrying the control number
	FindByControlNumber(ctx context.Context, controlNumber string) ([]*entities.Claim, error)

	// FindByPayerAndServiceDateRange returns claims of the payer whose service
	// date lies within [start, end]
	FindByPayerAndServiceDateRange(ctx context.Context, payerID string, start, end time.Time) ([]*entities.Claim, error)

	// UpdateStatus sets the claim status
	UpdateStatus(ctx context.Context, id string, status entities.ClaimStatus) error
}
