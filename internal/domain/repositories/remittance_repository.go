package repositories

import (
	"context"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// RemittanceRepository defines the interface for remittance data operations
type RemittanceRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Remittance, error)
}
