package quota

import (
	"context"
	"fmt"
	"testing"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckNewAndAlreadyModified(t *testing.T) {
	modified := SetOf([]string{"p1", "p2"})

	f := Check([]string{"p2", "p3", "p3", "p4"}, modified, 10)
	assert.ElementsMatch(t, []string{"p3", "p4"}, f.NewProducts)
	assert.ElementsMatch(t, []string{"p2"}, f.AlreadyModified)
	assert.Equal(t, 4, f.TotalAfter)
	assert.False(t, f.WouldExceed)
}

func TestCheckAtLimitAnyNewProductExceeds(t *testing.T) {
	// With |modified| == limit, any non-empty set of unseen products must
	// be rejected.
	limit := 5
	modified := make(map[string]struct{}, limit)
	for i := 0; i < limit; i++ {
		modified[fmt.Sprintf("p%d", i)] = struct{}{}
	}

	f := Check([]string{"fresh"}, modified, limit)
	assert.True(t, f.WouldExceed)
	assert.Equal(t, limit+1, f.TotalAfter)

	// Re-touching only known products stays within the limit.
	f = Check([]string{"p0", "p1"}, modified, limit)
	assert.False(t, f.WouldExceed)
	assert.Equal(t, limit, f.TotalAfter)
}

func TestCheckIgnoresEmptyAndDuplicateIDs(t *testing.T) {
	f := Check([]string{"", "a", "a", ""}, map[string]struct{}{}, 1)
	assert.Equal(t, []string{"a"}, f.NewProducts)
	assert.False(t, f.WouldExceed)
}

func TestCheckUnlimitedWhenNoLimit(t *testing.T) {
	f := Check([]string{"a", "b", "c"}, map[string]struct{}{}, 0)
	assert.False(t, f.WouldExceed)
}

// fakeSubscriptionRepo is an in-memory stand-in for the GORM repository,
// mirroring its conditional-commit semantics.
type fakeSubscriptionRepo struct {
	sub      models.Subscription
	modified map[string]struct{}
}

func newFakeSubscriptionRepo(limit int) *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{
		sub: models.Subscription{
			Shop:       "test-shop.example.com",
			PlanName:   "free",
			Status:     models.SubscriptionStatusActive,
			UsageLimit: limit,
		},
		modified: map[string]struct{}{},
	}
}

func (f *fakeSubscriptionRepo) GetOrCreateByShop(shop string) (*models.Subscription, error) {
	sub := f.sub
	return &sub, nil
}

func (f *fakeSubscriptionRepo) Update(sub *models.Subscription) error {
	f.sub = *sub
	return nil
}

func (f *fakeSubscriptionRepo) ResetToFree(shop string) (*models.Subscription, error) {
	sub := f.sub
	return &sub, nil
}

func (f *fakeSubscriptionRepo) ModifiedProductIDs(shop string) ([]string, error) {
	ids := make([]string, 0, len(f.modified))
	for id := range f.modified {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeSubscriptionRepo) CommitModifiedProducts(shop string, productIDs []string, limit int) (int, error) {
	next := make(map[string]struct{}, len(f.modified)+len(productIDs))
	for id := range f.modified {
		next[id] = struct{}{}
	}
	for _, id := range productIDs {
		if id != "" {
			next[id] = struct{}{}
		}
	}
	if limit > 0 && len(next) > limit {
		return 0, repository.ErrQuotaExceeded
	}
	f.modified = next
	f.sub.UsageCount = len(next)
	return len(next), nil
}

func TestEngineCommitUpdatesUsageCount(t *testing.T) {
	repo := newFakeSubscriptionRepo(10)
	engine := NewEngine(repo)
	ctx := context.Background()

	count, err := engine.Commit(ctx, repo.sub.Shop, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, repo.sub.UsageCount)
	assert.Len(t, repo.modified, repo.sub.UsageCount)
}

func TestEngineCommitIsIdempotent(t *testing.T) {
	repo := newFakeSubscriptionRepo(10)
	engine := NewEngine(repo)
	ctx := context.Background()

	_, err := engine.Commit(ctx, repo.sub.Shop, []string{"p1"})
	require.NoError(t, err)

	count, err := engine.Commit(ctx, repo.sub.Shop, []string{"p1", "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-committing a known product must not change usage")
}

func TestEngineCommitOverLimitFails(t *testing.T) {
	repo := newFakeSubscriptionRepo(2)
	engine := NewEngine(repo)
	ctx := context.Background()

	_, err := engine.Commit(ctx, repo.sub.Shop, []string{"p1", "p2"})
	require.NoError(t, err)

	_, err = engine.Commit(ctx, repo.sub.Shop, []string{"p3"})
	assert.ErrorIs(t, err, repository.ErrQuotaExceeded)
	assert.Equal(t, 2, repo.sub.UsageCount, "failed commit must not record products")
}

func TestEngineCommitEmptyBatch(t *testing.T) {
	repo := newFakeSubscriptionRepo(2)
	engine := NewEngine(repo)

	count, err := engine.Commit(context.Background(), repo.sub.Shop, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEngineCheckShop(t *testing.T) {
	repo := newFakeSubscriptionRepo(3)
	repo.modified["p1"] = struct{}{}
	repo.sub.UsageCount = 1
	engine := NewEngine(repo)

	f, sub, err := engine.CheckShop(context.Background(), repo.sub.Shop, []string{"p1", "p2", "p3", "p4"})
	require.NoError(t, err)
	assert.Equal(t, 3, sub.UsageLimit)
	assert.ElementsMatch(t, []string{"p2", "p3", "p4"}, f.NewProducts)
	assert.True(t, f.WouldExceed)
}
