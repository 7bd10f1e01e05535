package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// PayerAdapter implements the PayerRepository interface
type PayerAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPayerAdapter creates a new payer adapter
func NewPayerAdapter(client *postgres.Client) repositories.PayerRepository {
	return &PayerAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a payer and its rules document
func (a *PayerAdapter) GetByID(ctx context.Context, id string) (*entities.Payer, error) {
	query, args, err := a.db.Select("id", "name", "rules_config").
		From("payers").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build payer query", err)
	}

	payer := &entities.Payer{}
	var rules []byte
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&payer.ID, &payer.Name, &rules)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("payer with id %s not found", id))
	}
	if err != nil {
		return nil, storeError("failed to get payer", err)
	}

	cfg, err := entities.ParsePayerRulesConfig(rules)
	if err != nil {
		// an unreadable rules document means no payer-specific rules apply
		log.Warn().Err(err).Str("payer_id", id).Msg("ignoring malformed payer rules_config")
		cfg = entities.PayerRulesConfig{}
	}
	payer.RulesConfig = cfg
	return payer, nil
}
