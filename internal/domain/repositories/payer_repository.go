package repositories

import (
	"context"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// PayerRepository defines the interface for payer lookups
type PayerRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Payer, error)
}

// DenialPatternRepository defines the interface for learned denial patterns
type DenialPatternRepository interface {
	// FindByPayer returns the patterns learned for a payer
	FindByPayer(ctx context.Context, payerID string) ([]*entities.DenialPattern, error)
}
