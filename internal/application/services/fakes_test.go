package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

type fakeClaimRepo struct {
	mu       sync.Mutex
	claims   map[string]*entities.Claim
	statuses map[string]entities.ClaimStatus
	failWith error
}

func newFakeClaimRepo(claims ...*entities.Claim) *fakeClaimRepo {
	r := &fakeClaimRepo{claims: map[string]*entities.Claim{}, statuses: map[string]entities.ClaimStatus{}}
	for _, c := range claims {
		r.claims[c.ID] = c
	}
	return r
}

func (r *fakeClaimRepo) GetByID(_ context.Context, id string) (*entities.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	c, ok := r.claims[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("claim with id %s not found", id))
	}
	return c, nil
}

func (r *fakeClaimRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Claim, error) {
	out := []*entities.Claim{}
	for _, id := range ids {
		if c, err := r.GetByID(ctx, id); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeClaimRepo) FindByControlNumber(_ context.Context, controlNumber string) ([]*entities.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Claim{}
	for _, c := range r.claims {
		if c.ControlNumber == controlNumber {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeClaimRepo) FindByPayerAndServiceDateRange(_ context.Context, payerID string, start, end time.Time) ([]*entities.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*entities.Claim{}
	for _, c := range r.claims {
		if c.PayerID == nil || *c.PayerID != payerID || c.ServiceDate == nil {
			continue
		}
		if c.ServiceDate.Before(start) || c.ServiceDate.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeClaimRepo) UpdateStatus(_ context.Context, id string, status entities.ClaimStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.claims[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("claim with id %s not found", id))
	}
	r.statuses[id] = status
	return nil
}

type fakeRemittanceRepo struct {
	remittances map[string]*entities.Remittance
}

func newFakeRemittanceRepo(rems ...*entities.Remittance) *fakeRemittanceRepo {
	r := &fakeRemittanceRepo{remittances: map[string]*entities.Remittance{}}
	for _, rem := range rems {
		r.remittances[rem.ID] = rem
	}
	return r
}

func (r *fakeRemittanceRepo) GetByID(_ context.Context, id string) (*entities.Remittance, error) {
	rem, ok := r.remittances[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("remittance with id %s not found", id))
	}
	return rem, nil
}

// fakeEpisodeRepo enforces the unique (claim, remittance) pair like the real table
type fakeEpisodeRepo struct {
	mu      sync.Mutex
	byID    map[string]*entities.Episode
	byPair  map[string]string
	creates int
	updates int
	reads   int
}

func newFakeEpisodeRepo() *fakeEpisodeRepo {
	return &fakeEpisodeRepo{byID: map[string]*entities.Episode{}, byPair: map[string]string{}}
}

func (r *fakeEpisodeRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func pairKey(claimID, remittanceID string) string { return claimID + "|" + remittanceID }

func (r *fakeEpisodeRepo) GetByID(_ context.Context, id string) (*entities.Episode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	ep, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("episode with id %s not found", id))
	}
	cp := *ep
	return &cp, nil
}

func (r *fakeEpisodeRepo) GetByClaimAndRemittance(ctx context.Context, claimID, remittanceID string) (*entities.Episode, error) {
	r.mu.Lock()
	id, ok := r.byPair[pairKey(claimID, remittanceID)]
	r.mu.Unlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("episode not found")
	}
	return r.GetByID(ctx, id)
}

func (r *fakeEpisodeRepo) CreateIfAbsent(_ context.Context, ep *entities.Episode) (*entities.Episode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := pairKey(ep.ClaimID, *ep.RemittanceID)
	if id, ok := r.byPair[key]; ok {
		cp := *r.byID[id]
		return &cp, false, nil
	}
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	cp := *ep
	r.byID[ep.ID] = &cp
	r.byPair[key] = ep.ID
	r.creates++
	return ep, true, nil
}

func (r *fakeEpisodeRepo) Update(_ context.Context, ep *entities.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ep.ID]; !ok {
		return apperrors.NewNotFoundError("episode not found")
	}
	cp := *ep
	r.byID[ep.ID] = &cp
	r.updates++
	return nil
}

func (r *fakeEpisodeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type fakeRiskScoreRepo struct {
	mu      sync.Mutex
	byClaim map[string]*entities.RiskScore
	creates int
	updates int
}

func newFakeRiskScoreRepo() *fakeRiskScoreRepo {
	return &fakeRiskScoreRepo{byClaim: map[string]*entities.RiskScore{}}
}

func (r *fakeRiskScoreRepo) GetLatestByClaim(_ context.Context, claimID string) (*entities.RiskScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byClaim[claimID]
	if !ok {
		return nil, apperrors.NewNotFoundError("risk score not found")
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRiskScoreRepo) Create(_ context.Context, score *entities.RiskScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if score.ID == "" {
		score.ID = uuid.New().String()
	}
	cp := *score
	r.byClaim[score.ClaimID] = &cp
	r.creates++
	return nil
}

func (r *fakeRiskScoreRepo) Update(_ context.Context, score *entities.RiskScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *score
	r.byClaim[score.ClaimID] = &cp
	r.updates++
	return nil
}

type fakePayerRepo map[string]*entities.Payer

func (r fakePayerRepo) GetByID(_ context.Context, id string) (*entities.Payer, error) {
	if p, ok := r[id]; ok {
		return p, nil
	}
	return nil, apperrors.NewNotFoundError("payer not found")
}

type fakePatternRepo struct {
	patterns map[string][]*entities.DenialPattern
	failWith error
}

func (r *fakePatternRepo) FindByPayer(_ context.Context, payerID string) ([]*entities.DenialPattern, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.patterns[payerID], nil
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, claim *entities.Claim) (float64, error) {
	args := m.Called(ctx, claim)
	return args.Get(0).(float64), args.Error(1)
}

// failingCache errors on every call
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) ([]byte, error)    { return nil, errCacheDown }
func (failingCache) Set(context.Context, string, []byte, int) error { return errCacheDown }
func (failingCache) Delete(context.Context, string) error           { return errCacheDown }
func (failingCache) DeletePattern(context.Context, string) error    { return errCacheDown }
func (failingCache) Exists(context.Context, string) (bool, error)   { return false, errCacheDown }
