package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// ClaimAdapter implements the ClaimRepository interface
type ClaimAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClaimAdapter creates a new claim adapter
func NewClaimAdapter(client *postgres.Client) repositories.ClaimRepository {
	return &ClaimAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var claimColumns = []interface{}{
	"id", "control_number", "charge_amount", "diagnosis_codes", "principal_diagnosis",
	"provider_id", "attending_provider_id", "payer_id", "is_complete", "parsing_warnings",
	"service_date", "statement_date", "assignment_code", "frequency_type", "facility_type",
	"status", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entities.Claim, error) {
	claim := &entities.Claim{}
	var principal, attending, payer, assignment, frequency, facility sql.NullString
	var serviceDate, statementDate sql.NullTime
	var diagnosisCodes, warnings []string

	err := row.Scan(
		&claim.ID,
		&claim.ControlNumber,
		&claim.ChargeAmount,
		pq.Array(&diagnosisCodes),
		&principal,
		&claim.ProviderID,
		&attending,
		&payer,
		&claim.IsComplete,
		pq.Array(&warnings),
		&serviceDate,
		&statementDate,
		&assignment,
		&frequency,
		&facility,
		&claim.Status,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	claim.DiagnosisCodes = diagnosisCodes
	claim.ParsingWarnings = warnings
	claim.PrincipalDiagnosis = stringPtr(principal)
	claim.AttendingProviderID = stringPtr(attending)
	claim.PayerID = stringPtr(payer)
	claim.AssignmentCode = stringPtr(assignment)
	claim.FrequencyType = stringPtr(frequency)
	claim.FacilityType = stringPtr(facility)
	claim.ServiceDate = timePtr(serviceDate)
	claim.StatementDate = timePtr(statementDate)
	return claim, nil
}

// GetByID retrieves a claim with its lines
func (a *ClaimAdapter) GetByID(ctx context.Context, id string) (*entities.Claim, error) {
	query, args, err := a.db.Select(claimColumns...).
		From("claims").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build claim query", err)
	}

	claim, err := scanClaim(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("claim with id %s not found", id))
	}
	if err != nil {
		return nil, storeError("failed to get claim", err)
	}

	if err := a.attachLines(ctx, []*entities.Claim{claim}); err != nil {
		return nil, err
	}
	return claim, nil
}

// GetByIDs retrieves several claims
func (a *ClaimAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Claim, error) {
	if len(ids) == 0 {
		return []*entities.Claim{}, nil
	}
	return a.list(ctx, a.db.Select(claimColumns...).From("claims").Where(goqu.Ex{"id": ids}))
}

// FindByControlNumber returns every claim carrying the control number
func (a *ClaimAdapter) FindByControlNumber(ctx context.Context, controlNumber string) ([]*entities.Claim, error) {
	return a.list(ctx, a.db.Select(claimColumns...).
		From("claims").
		Where(goqu.Ex{"control_number": controlNumber}).
		Order(goqu.C("created_at").Asc()))
}

// FindByPayerAndServiceDateRange returns claims of a payer serviced within [start, end]
func (a *ClaimAdapter) FindByPayerAndServiceDateRange(ctx context.Context, payerID string, start, end time.Time) ([]*entities.Claim, error) {
	return a.list(ctx, a.db.Select(claimColumns...).
		From("claims").
		Where(
			goqu.C("payer_id").Eq(payerID),
			goqu.C("service_date").Between(goqu.Range(start, end)),
		).
		Order(goqu.C("service_date").Asc(), goqu.C("id").Asc()))
}

// UpdateStatus sets the claim status
func (a *ClaimAdapter) UpdateStatus(ctx context.Context, id string, status entities.ClaimStatus) error {
	query, args, err := a.db.Update("claims").
		Set(goqu.Record{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewPersistenceError("failed to build claim status update", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return storeError("failed to update claim status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("claim with id %s not found", id))
	}
	return nil
}

func (a *ClaimAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Claim, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to build claim query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to query claims", err)
	}
	defer rows.Close()

	claims := make([]*entities.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, storeError("failed to scan claim", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate claims", err)
	}

	if err := a.attachLines(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// attachLines loads the lines of all claims in one query
func (a *ClaimAdapter) attachLines(ctx context.Context, claims []*entities.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	byID := make(map[string]*entities.Claim, len(claims))
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	query, args, err := a.db.Select("claim_id", "line_number", "procedure_code", "charge_amount", "service_date").
		From("claim_lines").
		Where(goqu.Ex{"claim_id": ids}).
		Order(goqu.C("claim_id").Asc(), goqu.C("line_number").Asc()).
		ToSQL()
	if err != nil {
		return apperrors.NewPersistenceError("failed to build claim lines query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return storeError("failed to query claim lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var claimID string
		var line entities.ClaimLine
		var procedureCode sql.NullString
		var serviceDate sql.NullTime
		if err := rows.Scan(&claimID, &line.LineNumber, &procedureCode, &line.ChargeAmount, &serviceDate); err != nil {
			return storeError("failed to scan claim line", err)
		}
		line.ProcedureCode = procedureCode.String
		line.ServiceDate = timePtr(serviceDate)
		if claim, ok := byID[claimID]; ok {
			claim.Lines = append(claim.Lines, line)
		}
	}
	return rows.Err()
}
