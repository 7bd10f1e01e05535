package providers

import (
	"context"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// HistoricalRiskPredictor scores a claim from historical outcomes. The score is
// in [0, 100]; the model behind it is opaque to this service.
type HistoricalRiskPredictor interface {
	Predict(ctx context.Context, claim *entities.Claim) (float64, error)
}
