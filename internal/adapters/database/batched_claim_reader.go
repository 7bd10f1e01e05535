package database

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// BatchedClaimReader coalesces concurrent GetByID calls into GetByIDs
// queries. Results are memoised for the reader's lifetime, so create one
// per unit of work.
type BatchedClaimReader struct {
	repositories.ClaimRepository
	loader *dataloader.Loader[string, *entities.Claim]
}

// NewBatchedClaimReader wraps repo. wait is the batching window; <= 0 uses 2ms.
func NewBatchedClaimReader(repo repositories.ClaimRepository, wait time.Duration) *BatchedClaimReader {
	if wait <= 0 {
		wait = 2 * time.Millisecond
	}
	r := &BatchedClaimReader{ClaimRepository: repo}
	r.loader = dataloader.NewBatchedLoader(r.batch, dataloader.WithWait[string, *entities.Claim](wait))
	return r
}

// GetByID loads a claim through the batch loader
func (r *BatchedClaimReader) GetByID(ctx context.Context, id string) (*entities.Claim, error) {
	return r.loader.Load(ctx, id)()
}

func (r *BatchedClaimReader) batch(ctx context.Context, ids []string) []*dataloader.Result[*entities.Claim] {
	results := make([]*dataloader.Result[*entities.Claim], len(ids))

	claims, err := r.ClaimRepository.GetByIDs(ctx, ids)
	if err != nil {
		for i := range results {
			results[i] = &dataloader.Result[*entities.Claim]{Error: err}
		}
		return results
	}

	byID := make(map[string]*entities.Claim, len(claims))
	for _, c := range claims {
		byID[c.ID] = c
	}
	for i, id := range ids {
		if c, ok := byID[id]; ok {
			results[i] = &dataloader.Result[*entities.Claim]{Data: c}
			continue
		}
		results[i] = &dataloader.Result[*entities.Claim]{
			Error: apperrors.NewNotFoundError(fmt.Sprintf("claim with id %s not found", id)),
		}
	}
	return results
}
