package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// RemittanceAdapter implements the RemittanceRepository interface
type RemittanceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRemittanceAdapter creates a new remittance adapter
func NewRemittanceAdapter(client *postgres.Client) repositories.RemittanceRepository {
	return &RemittanceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a remittance by ID
func (a *RemittanceAdapter) GetByID(ctx context.Context, id string) (*entities.Remittance, error) {
	query, args, err := a.db.Select(
		"id", "control_number", "claim_control_number", "payment_amount", "payment_date",
		"payer_id", "denial_reasons", "adjustment_reasons", "processing_status", "created_at",
	).From("remittances").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build remittance query", err)
	}

	remittance := &entities.Remittance{}
	var claimControlNumber, payerID sql.NullString
	var paymentDate sql.NullTime
	var denials, adjustments []string

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&remittance.ID,
		&remittance.ControlNumber,
		&claimControlNumber,
		&remittance.PaymentAmount,
		&paymentDate,
		&payerID,
		pq.Array(&denials),
		pq.Array(&adjustments),
		&remittance.ProcessingStatus,
		&remittance.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("remittance with id %s not found", id))
	}
	if err != nil {
		return nil, storeError("failed to get remittance", err)
	}

	remittance.ClaimControlNumber = stringPtr(claimControlNumber)
	remittance.PayerID = stringPtr(payerID)
	remittance.PaymentDate = timePtr(paymentDate)
	remittance.DenialReasons = denials
	remittance.AdjustmentReasons = adjustments
	return remittance, nil
}
