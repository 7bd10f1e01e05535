package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// RiskScoreAdapter implements the RiskScoreRepository interface.
// Factors and recommendations are stored as jsonb.
type RiskScoreAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRiskScoreAdapter creates a new risk score adapter
func NewRiskScoreAdapter(client *postgres.Client) repositories.RiskScoreRepository {
	return &RiskScoreAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetLatestByClaim returns the most recent score of a claim
func (a *RiskScoreAdapter) GetLatestByClaim(ctx context.Context, claimID string) (*entities.RiskScore, error) {
	query, args, err := a.db.Select(
		"id", "claim_id", "overall_score", "risk_level", "coding_risk", "documentation_risk",
		"payer_risk", "historical_risk", "pattern_risk", "risk_factors", "recommendations", "calculated_at",
	).From("risk_scores").
		Where(goqu.Ex{"claim_id": claimID}).
		Order(goqu.C("calculated_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build risk score query", err)
	}

	score := &entities.RiskScore{}
	var factors, recommendations []byte
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&score.ID, &score.ClaimID, &score.OverallScore, &score.RiskLevel,
		&score.CodingRisk, &score.DocumentationRisk, &score.PayerRisk,
		&score.HistoricalRisk, &score.PatternRisk,
		&factors, &recommendations, &score.CalculatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("risk score for claim %s not found", claimID))
	}
	if err != nil {
		return nil, storeError("failed to get risk score", err)
	}

	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &score.RiskFactors); err != nil {
			return nil, apperrors.NewPersistenceError("failed to decode risk factors", err)
		}
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &score.Recommendations); err != nil {
			return nil, apperrors.NewPersistenceError("failed to decode recommendations", err)
		}
	}
	return score, nil
}

// Create inserts a new risk score
func (a *RiskScoreAdapter) Create(ctx context.Context, score *entities.RiskScore) error {
	if score.ID == "" {
		score.ID = uuid.New().String()
	}
	if score.CalculatedAt.IsZero() {
		score.CalculatedAt = time.Now().UTC()
	}

	record, err := riskScoreRecord(score)
	if err != nil {
		return err
	}
	record["id"] = score.ID
	record["claim_id"] = score.ClaimID

	query, args, err := a.db.Insert("risk_scores").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewPersistenceError("failed to build risk score insert", err)
	}
	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return storeError("failed to create risk score", err)
	}
	return nil
}

// Update overwrites the values of an existing risk score
func (a *RiskScoreAdapter) Update(ctx context.Context, score *entities.RiskScore) error {
	record, err := riskScoreRecord(score)
	if err != nil {
		return err
	}

	query, args, err := a.db.Update("risk_scores").
		Set(record).
		Where(goqu.Ex{"id": score.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewPersistenceError("failed to build risk score update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return storeError("failed to update risk score", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("risk score with id %s not found", score.ID))
	}
	return nil
}

func riskScoreRecord(score *entities.RiskScore) (goqu.Record, error) {
	factors := score.RiskFactors
	if factors == nil {
		factors = []entities.RiskFactor{}
	}
	recommendations := score.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}

	factorsJSON, err := json.Marshal(factors)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to encode risk factors", err)
	}
	recommendationsJSON, err := json.Marshal(recommendations)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to encode recommendations", err)
	}

	return goqu.Record{
		"overall_score":      score.OverallScore,
		"risk_level":         score.RiskLevel,
		"coding_risk":        score.CodingRisk,
		"documentation_risk": score.DocumentationRisk,
		"payer_risk":         score.PayerRisk,
		"historical_risk":    score.HistoricalRisk,
		"pattern_risk":       score.PatternRisk,
		"risk_factors":       string(factorsJSON),
		"recommendations":    string(recommendationsJSON),
		"calculated_at":      score.CalculatedAt,
	}, nil
}
