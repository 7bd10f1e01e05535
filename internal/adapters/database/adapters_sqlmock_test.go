package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/claimrecon/internal/adapters/database"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewClientFromDB(db), mock
}

var claimRowColumns = []string{
	"id", "control_number", "charge_amount", "diagnosis_codes", "principal_diagnosis",
	"provider_id", "attending_provider_id", "payer_id", "is_complete", "parsing_warnings",
	"service_date", "statement_date", "assignment_code", "frequency_type", "facility_type",
	"status", "created_at", "updated_at",
}

func TestClaimAdapter_GetByID(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewClaimAdapter(client)
	ctx := context.Background()
	serviceDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .+ FROM "claims" WHERE \("id" = 'clm-1'\)`).
		WillReturnRows(sqlmock.NewRows(claimRowColumns).AddRow(
			"clm-1", "CLM001", 250.0, "{E119,I10}", "E119",
			"prov-1", nil, "payer-1", true, "{}",
			serviceDate, nil, "A", "1", "11",
			"submitted", now, now,
		))
	mock.ExpectQuery(`SELECT .+ FROM "claim_lines"`).
		WillReturnRows(sqlmock.NewRows([]string{"claim_id", "line_number", "procedure_code", "charge_amount", "service_date"}).
			AddRow("clm-1", 1, "99213", 150.0, serviceDate).
			AddRow("clm-1", 2, nil, 100.0, nil))

	claim, err := adapter.GetByID(ctx, "clm-1")
	require.NoError(t, err)

	assert.Equal(t, "CLM001", claim.ControlNumber)
	assert.Equal(t, []string{"E119", "I10"}, claim.DiagnosisCodes)
	require.NotNil(t, claim.PrincipalDiagnosis)
	assert.Equal(t, "E119", *claim.PrincipalDiagnosis)
	assert.Nil(t, claim.AttendingProviderID)
	assert.Nil(t, claim.StatementDate)
	require.NotNil(t, claim.ServiceDate)
	assert.True(t, serviceDate.Equal(*claim.ServiceDate))
	require.Len(t, claim.Lines, 2)
	assert.Equal(t, "", claim.Lines[1].ProcedureCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimAdapter_GetByID_NotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewClaimAdapter(client)

	mock.ExpectQuery(`SELECT .+ FROM "claims"`).WillReturnRows(sqlmock.NewRows(claimRowColumns))

	_, err := adapter.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestClaimAdapter_UpdateStatus(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewClaimAdapter(client)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "claims" SET .*"status"='paid'`).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, adapter.UpdateStatus(ctx, "clm-1", entities.ClaimStatusPaid))

	mock.ExpectExec(`UPDATE "claims"`).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, apperrors.IsNotFound(adapter.UpdateStatus(ctx, "gone", entities.ClaimStatusPaid)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemittanceAdapter_GetByID(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewRemittanceAdapter(client)

	mock.ExpectQuery(`SELECT .+ FROM "remittances"`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "control_number", "claim_control_number", "payment_amount", "payment_date",
			"payer_id", "denial_reasons", "adjustment_reasons", "processing_status", "created_at",
		}).AddRow("rem-1", "ERA001", "CLM001", 200.0, nil, "payer-1", "{CO-16}", "{CO-45,PR-1}", "processed", time.Now()))

	rem, err := adapter.GetByID(context.Background(), "rem-1")
	require.NoError(t, err)
	assert.True(t, rem.IsProcessed())
	assert.Equal(t, []string{"CO-16"}, rem.DenialReasons)
	assert.Len(t, rem.AdjustmentReasons, 2)
	assert.Nil(t, rem.PaymentDate)
}

func TestPayerAdapter_MalformedRulesIgnored(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewPayerAdapter(client)

	mock.ExpectQuery(`SELECT .+ FROM "payers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "rules_config"}).
			AddRow("payer-1", "Acme Health", []byte(`{not json`)))

	payer, err := adapter.GetByID(context.Background(), "payer-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Health", payer.Name)
	assert.True(t, payer.RulesConfig.AllowsFrequencyType("7"))
}

func TestDenialPatternAdapter_SkipsInvalidConditions(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewDenialPatternAdapter(client)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM "denial_patterns" WHERE \("payer_id" = 'payer-1'\) ORDER BY "confidence_score" DESC`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payer_id", "pattern_type", "denial_reason_code", "description",
			"occurrence_count", "frequency", "confidence_score", "conditions", "updated_at",
		}).
			AddRow("p1", "payer-1", "coding", "CO-11", "dx mismatch", 10, 0.4, 0.9, []byte(`{"procedure_codes":["99213"]}`), now).
			AddRow("p2", "payer-1", "charge", "CO-45", "bad range", 3, 0.1, 0.5, []byte(`{"min_charge_amount":10,"max_charge_amount":1}`), now))

	patterns, err := adapter.FindByPayer(context.Background(), "payer-1")
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "p1", patterns[0].ID)
	assert.Equal(t, []string{"99213"}, patterns[0].Conditions.ProcedureCodes)
}

var episodeRowColumns = []string{
	"id", "claim_id", "remittance_id", "status", "match_method", "linked_at",
	"payment_amount", "denial_count", "adjustment_count", "created_at", "updated_at",
}

func TestEpisodeAdapter_CreateIfAbsent(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEpisodeAdapter(client)
	ctx := context.Background()
	remID := "rem-1"

	mock.ExpectQuery(`INSERT INTO "episodes" .+ ON CONFLICT DO NOTHING RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ep-new"))

	ep := &entities.Episode{ClaimID: "clm-1", RemittanceID: &remID, Status: entities.EpisodeStatusLinked, MatchMethod: entities.MatchMethodControlNumber}
	stored, created, err := adapter.CreateIfAbsent(ctx, ep)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEpisodeAdapter_CreateIfAbsent_ExistingPair(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEpisodeAdapter(client)
	ctx := context.Background()
	remID := "rem-1"
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO "episodes"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT .+ FROM "episodes" WHERE \(\("claim_id" = 'clm-1'\) AND \("remittance_id" = 'rem-1'\)\)`).
		WillReturnRows(sqlmock.NewRows(episodeRowColumns).
			AddRow("ep-old", "clm-1", "rem-1", "LINKED", "control_number", now, 200.0, 1, 2, now, now))

	stored, created, err := adapter.CreateIfAbsent(ctx, &entities.Episode{ClaimID: "clm-1", RemittanceID: &remID, Status: entities.EpisodeStatusLinked})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ep-old", stored.ID)
	assert.Equal(t, 2, stored.AdjustmentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEpisodeAdapter_Update_NotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewEpisodeAdapter(client)

	mock.ExpectExec(`UPDATE "episodes"`).WillReturnResult(sqlmock.NewResult(0, 0))
	err := adapter.Update(context.Background(), &entities.Episode{ID: "ep-x", Status: entities.EpisodeStatusComplete})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRiskScoreAdapter_GetLatestByClaim(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewRiskScoreAdapter(client)

	mock.ExpectQuery(`SELECT .+ FROM "risk_scores" WHERE \("claim_id" = 'clm-1'\) ORDER BY "calculated_at" DESC LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "claim_id", "overall_score", "risk_level", "coding_risk", "documentation_risk",
			"payer_risk", "historical_risk", "pattern_risk", "risk_factors", "recommendations", "calculated_at",
		}).AddRow("rs-1", "clm-1", 42.5, "MEDIUM", 10.0, 20.0, 0.0, 50.0, 0.0,
			[]byte(`[{"type":"coding","severity":"high","message":"missing principal diagnosis"}]`),
			[]byte(`["Add a principal diagnosis"]`), time.Now()))

	score, err := adapter.GetLatestByClaim(context.Background(), "clm-1")
	require.NoError(t, err)
	assert.Equal(t, entities.RiskLevelMedium, score.RiskLevel)
	require.Len(t, score.RiskFactors, 1)
	assert.Equal(t, entities.SeverityHigh, score.RiskFactors[0].Severity)
	assert.Equal(t, []string{"Add a principal diagnosis"}, score.Recommendations)
}

func TestRiskScoreAdapter_Create_UniqueViolation(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewRiskScoreAdapter(client)

	mock.ExpectExec(`INSERT INTO "risk_scores"`).WillReturnError(&pq.Error{Code: "23505"})

	err := adapter.Create(context.Background(), &entities.RiskScore{ClaimID: "clm-1"})
	assert.True(t, apperrors.IsConflict(err))
}
