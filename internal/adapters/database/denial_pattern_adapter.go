package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// DenialPatternAdapter implements the DenialPatternRepository interface
type DenialPatternAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDenialPatternAdapter creates a new denial pattern adapter
func NewDenialPatternAdapter(client *postgres.Client) repositories.DenialPatternRepository {
	return &DenialPatternAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// FindByPayer returns the payer's patterns, most confident first.
// Patterns whose conditions cannot be parsed are skipped.
func (a *DenialPatternAdapter) FindByPayer(ctx context.Context, payerID string) ([]*entities.DenialPattern, error) {
	query, args, err := a.db.Select(
		"id", "payer_id", "pattern_type", "denial_reason_code", "description",
		"occurrence_count", "frequency", "confidence_score", "conditions", "updated_at",
	).From("denial_patterns").
		Where(goqu.Ex{"payer_id": payerID}).
		Order(goqu.C("confidence_score").Desc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build denial pattern query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to query denial patterns", err)
	}
	defer rows.Close()

	patterns := make([]*entities.DenialPattern, 0)
	for rows.Next() {
		p := &entities.DenialPattern{}
		var conditions []byte
		if err := rows.Scan(
			&p.ID, &p.PayerID, &p.PatternType, &p.DenialReasonCode, &p.Description,
			&p.OccurrenceCount, &p.Frequency, &p.ConfidenceScore, &conditions, &p.UpdatedAt,
		); err != nil {
			return nil, storeError("failed to scan denial pattern", err)
		}

		parsed, err := entities.ParsePatternConditions(conditions)
		if err != nil {
			log.Warn().Err(err).Str("pattern_id", p.ID).Msg("skipping denial pattern with invalid conditions")
			continue
		}
		p.Conditions = parsed
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate denial patterns", err)
	}
	return patterns, nil
}
