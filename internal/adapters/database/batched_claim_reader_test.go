package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/claimrecon/internal/adapters/database"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// countingClaimRepo records GetByIDs batches
type countingClaimRepo struct {
	mu      sync.Mutex
	batches [][]string
	claims  map[string]*entities.Claim
}

func (r *countingClaimRepo) GetByID(ctx context.Context, id string) (*entities.Claim, error) {
	panic("GetByID should go through the loader")
}

func (r *countingClaimRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.Claim, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), ids...))
	r.mu.Unlock()
	out := make([]*entities.Claim, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.claims[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *countingClaimRepo) FindByControlNumber(ctx context.Context, controlNumber string) ([]*entities.Claim, error) {
	return nil, nil
}

func (r *countingClaimRepo) FindByPayerAndServiceDateRange(ctx context.Context, payerID string, start, end time.Time) ([]*entities.Claim, error) {
	return nil, nil
}

func (r *countingClaimRepo) UpdateStatus(ctx context.Context, id string, status entities.ClaimStatus) error {
	return nil
}

func TestBatchedClaimReader_CoalescesLoads(t *testing.T) {
	repo := &countingClaimRepo{claims: map[string]*entities.Claim{
		"a": {ID: "a"},
		"b": {ID: "b"},
	}}
	reader := database.NewBatchedClaimReader(repo, 20*time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, id := range []string{"a", "b", "missing"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = reader.GetByID(ctx, id)
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, apperrors.IsNotFound(errs[2]))
	assert.Len(t, repo.batches, 1)
	assert.ElementsMatch(t, []string{"a", "b", "missing"}, repo.batches[0])
}
