package repositories

import (
	"context"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// EpisodeRepository defines the interface for episode persistence
type EpisodeRepository interface {
	GetByID(ctx context.Context, id string) (*entities.Episode, error)

	// GetByClaimAndRemittance returns the episode of the pair or a not found error
	GetByClaimAndRemittance(ctx context.Context, claimID, remittanceID string) (*entities.Episode, error)

	// CreateIfAbsent inserts the episode unless one already exists for its
	// (claim, remittance) pair. It returns the stored episode and whether it was
	// created by this call.
	CreateIfAbsent(ctx context.Context, episode *entities.Episode) (*entities.Episode, bool, error)

	Update(ctx context.Context, episode *entities.Episode) error
}

// RiskScoreRepository defines the interface for risk score persistence
type RiskScoreRepository interface {
	// GetLatestByClaim returns the most recently calculated score of a claim
	GetLatestByClaim(ctx context.Context, claimID string) (*entities.RiskScore, error)

	Create(ctx context.Context, score *entities.RiskScore) error

	Update(ctx context.Context, score *entities.RiskScore) error
}
