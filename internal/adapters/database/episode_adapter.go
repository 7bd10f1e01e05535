package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// EpisodeAdapter implements the EpisodeRepository interface.
// The episodes table carries a unique index on (claim_id, remittance_id).
type EpisodeAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewEpisodeAdapter creates a new episode adapter
func NewEpisodeAdapter(client *postgres.Client) repositories.EpisodeRepository {
	return &EpisodeAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var episodeColumns = []interface{}{
	"id", "claim_id", "remittance_id", "status", "match_method", "linked_at",
	"payment_amount", "denial_count", "adjustment_count", "created_at", "updated_at",
}

func scanEpisode(row rowScanner) (*entities.Episode, error) {
	ep := &entities.Episode{}
	var remittanceID sql.NullString
	var linkedAt sql.NullTime
	err := row.Scan(
		&ep.ID, &ep.ClaimID, &remittanceID, &ep.Status, &ep.MatchMethod, &linkedAt,
		&ep.PaymentAmount, &ep.DenialCount, &ep.AdjustmentCount, &ep.CreatedAt, &ep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	ep.RemittanceID = stringPtr(remittanceID)
	ep.LinkedAt = timePtr(linkedAt)
	return ep, nil
}

// GetByID retrieves an episode by ID
func (a *EpisodeAdapter) GetByID(ctx context.Context, id string) (*entities.Episode, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("episode with id %s not found", id))
}

// GetByClaimAndRemittance retrieves the episode of a claim/remittance pair
func (a *EpisodeAdapter) GetByClaimAndRemittance(ctx context.Context, claimID, remittanceID string) (*entities.Episode, error) {
	return a.getOne(ctx,
		goqu.Ex{"claim_id": claimID, "remittance_id": remittanceID},
		fmt.Sprintf("episode for claim %s and remittance %s not found", claimID, remittanceID),
	)
}

func (a *EpisodeAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.Episode, error) {
	query, args, err := a.db.Select(episodeColumns...).From("episodes").Where(where).ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build episode query", err)
	}

	ep, err := scanEpisode(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, storeError("failed to get episode", err)
	}
	return ep, nil
}

// CreateIfAbsent inserts the episode; when the pair already exists the
// stored row is returned instead and created is false.
func (a *EpisodeAdapter) CreateIfAbsent(ctx context.Context, episode *entities.Episode) (*entities.Episode, bool, error) {
	if episode.ID == "" {
		episode.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = now
	}
	episode.UpdatedAt = now

	query, args, err := a.db.Insert("episodes").
		Rows(goqu.Record{
			"id":               episode.ID,
			"claim_id":         episode.ClaimID,
			"remittance_id":    nullString(episode.RemittanceID),
			"status":           episode.Status,
			"match_method":     episode.MatchMethod,
			"linked_at":        nullTime(episode.LinkedAt),
			"payment_amount":   episode.PaymentAmount,
			"denial_count":     episode.DenialCount,
			"adjustment_count": episode.AdjustmentCount,
			"created_at":       episode.CreatedAt,
			"updated_at":       episode.UpdatedAt,
		}).
		OnConflict(goqu.DoNothing()).
		Returning("id").
		ToSQL()
	if err != nil {
		return nil, false, apperrors.NewPersistenceError("failed to build episode insert", err)
	}

	var id string
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return episode, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, storeError("failed to create episode", err)
	}

	// conflict: another writer owns the pair
	if episode.RemittanceID == nil {
		return nil, false, apperrors.NewConflictError("episode insert skipped without remittance", nil)
	}
	existing, err := a.GetByClaimAndRemittance(ctx, episode.ClaimID, *episode.RemittanceID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Update persists the mutable episode fields
func (a *EpisodeAdapter) Update(ctx context.Context, episode *entities.Episode) error {
	episode.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update("episodes").
		Set(goqu.Record{
			"status":           episode.Status,
			"match_method":     episode.MatchMethod,
			"linked_at":        nullTime(episode.LinkedAt),
			"payment_amount":   episode.PaymentAmount,
			"denial_count":     episode.DenialCount,
			"adjustment_count": episode.AdjustmentCount,
			"updated_at":       episode.UpdatedAt,
		}).
		Where(goqu.Ex{"id": episode.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewPersistenceError("failed to build episode update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return storeError("failed to update episode", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("episode with id %s not found", episode.ID))
	}
	return nil
}
