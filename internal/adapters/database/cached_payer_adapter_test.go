package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/claimrecon/internal/adapters/cache"
	"github.com/zatekoja/claimrecon/internal/adapters/database"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

type mockPayerRepository struct {
	mock.Mock
}

func (m *mockPayerRepository) GetByID(ctx context.Context, id string) (*entities.Payer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Payer), args.Error(1)
}

func TestCachedPayerAdapter_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)

	repo := new(mockPayerRepository)
	repo.On("GetByID", ctx, "payer-1").Return(&entities.Payer{
		ID:          "payer-1",
		Name:        "Acme Health",
		RulesConfig: entities.PayerRulesConfig{AllowedFrequencyTypes: []string{"1"}},
	}, nil).Once()

	adapter := database.NewCachedPayerAdapter(repo, store, 60, nil)

	first, err := adapter.GetByID(ctx, "payer-1")
	require.NoError(t, err)
	second, err := adapter.GetByID(ctx, "payer-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, second.RulesConfig.AllowsFrequencyType("7"))
	repo.AssertNumberOfCalls(t, "GetByID", 1)

	exists, err := store.Exists(ctx, database.PayerCacheKey("payer-1"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCachedPayerAdapter_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)

	repo := new(mockPayerRepository)
	repo.On("GetByID", ctx, "nope").Return(nil, apperrors.NewNotFoundError("payer with id nope not found"))

	adapter := database.NewCachedPayerAdapter(repo, store, 0, nil)
	_, err = adapter.GetByID(ctx, "nope")
	assert.True(t, apperrors.IsNotFound(err))

	exists, _ := store.Exists(ctx, database.PayerCacheKey("nope"))
	assert.False(t, exists)
}
