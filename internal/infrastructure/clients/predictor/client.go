package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
	"github.com/zatekoja/claimrecon/pkg/config"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// HTTPClient calls the historical denial model over HTTP behind a circuit breaker
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type predictRequest struct {
	ClaimID            string   `json:"claimId"`
	ControlNumber      string   `json:"controlNumber"`
	PayerID            string   `json:"payerId,omitempty"`
	ProviderID         string   `json:"providerId"`
	ChargeAmount       float64  `json:"chargeAmount"`
	DiagnosisCodes     []string `json:"diagnosisCodes"`
	PrincipalDiagnosis string   `json:"principalDiagnosis,omitempty"`
	ProcedureCodes     []string `json:"procedureCodes"`
	FacilityType       string   `json:"facilityType,omitempty"`
	FrequencyType      string   `json:"frequencyType,omitempty"`
}

type predictResponse struct {
	Score float64 `json:"score"`
}

// NewHTTPClient creates a predictor client
func NewHTTPClient(cfg *config.PredictorConfig) providers.HistoricalRiskPredictor {
	threshold := uint32(cfg.FailureThreshold)
	if threshold == 0 {
		threshold = 5
	}
	logger := observability.GetLogger()

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "historical-predictor",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

// Predict returns the historical denial risk of a claim in [0, 100]
func (c *HTTPClient) Predict(ctx context.Context, claim *entities.Claim) (float64, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.predict(ctx, claim)
	})
	if err != nil {
		return 0, apperrors.NewExternalError("historical risk prediction failed", err)
	}
	return result.(float64), nil
}

func (c *HTTPClient) predict(ctx context.Context, claim *entities.Claim) (float64, error) {
	body, err := json.Marshal(newPredictRequest(claim))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("predictor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Score < 0 || out.Score > 100 {
		return 0, fmt.Errorf("predictor score %.2f out of range", out.Score)
	}
	return out.Score, nil
}

func newPredictRequest(claim *entities.Claim) predictRequest {
	req := predictRequest{
		ClaimID:        claim.ID,
		ControlNumber:  claim.ControlNumber,
		ProviderID:     claim.ProviderID,
		ChargeAmount:   claim.ChargeAmount,
		DiagnosisCodes: claim.DiagnosisCodes,
		ProcedureCodes: claim.ProcedureCodes(),
	}
	if req.DiagnosisCodes == nil {
		req.DiagnosisCodes = []string{}
	}
	req.PayerID = deref(claim.PayerID)
	req.PrincipalDiagnosis = deref(claim.PrincipalDiagnosis)
	req.FacilityType = deref(claim.FacilityType)
	req.FrequencyType = deref(claim.FrequencyType)
	return req
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// New returns an HTTP client when a URL is configured. Without a URL it
// returns nil and the scorer uses a neutral historical risk.
func New(cfg *config.PredictorConfig) providers.HistoricalRiskPredictor {
	if cfg == nil || cfg.URL == "" {
		observability.GetLogger().Info().Msg("historical predictor not configured, historical risk disabled")
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return NewHTTPClient(cfg)
}
