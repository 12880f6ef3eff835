package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/PricePilot/PricePilot/internal/pkg/quota"
	"github.com/PricePilot/PricePilot/internal/pkg/shopify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShop = "test-shop.example.com"

// fakeQuota mirrors the quota engine over an in-memory modified set.
type fakeQuota struct {
	limit     int
	modified  map[string]struct{}
	commitErr error
	committed [][]string
}

func newFakeQuota(limit int) *fakeQuota {
	return &fakeQuota{limit: limit, modified: map[string]struct{}{}}
}

func (f *fakeQuota) CheckShop(ctx context.Context, shop string, prospective []string) (quota.Feasibility, *models.Subscription, error) {
	sub := &models.Subscription{
		Shop:       shop,
		UsageCount: len(f.modified),
		UsageLimit: f.limit,
	}
	return quota.Check(prospective, f.modified, f.limit), sub, nil
}

func (f *fakeQuota) Commit(ctx context.Context, shop string, productIDs []string) (int, error) {
	f.committed = append(f.committed, productIDs)
	if f.commitErr != nil {
		return 0, f.commitErr
	}
	for _, id := range productIDs {
		f.modified[id] = struct{}{}
	}
	return len(f.modified), nil
}

// fakeCommerce returns scripted user errors or transport errors per product.
type fakeCommerce struct {
	userErrors map[string][]shopify.UserError
	failures   map[string]error
	calls      []string
}

func (f *fakeCommerce) UpdateVariantPrices(ctx context.Context, productID string, variants []shopify.VariantPriceInput) ([]shopify.UserError, error) {
	f.calls = append(f.calls, productID)
	if err, ok := f.failures[productID]; ok {
		return nil, err
	}
	return f.userErrors[productID], nil
}

type fakeHistory struct {
	entries []models.PricingHistory
	err     error
}

func (f *fakeHistory) CreateBatch(entries []models.PricingHistory) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeHistory) ListByShop(shop string, offset, limit int) ([]models.PricingHistory, error) {
	return f.entries, nil
}

func (f *fakeHistory) CountByShop(shop string) (int64, error) {
	return int64(len(f.entries)), nil
}

func selectionOf3() []ProductSelection {
	return []ProductSelection{
		{
			ID:    "gid://shopify/Product/A",
			Title: "Alpha",
			Variants: []VariantSelection{
				{ID: "gid://shopify/ProductVariant/A1", Title: "Default", Price: 20.00},
			},
		},
		{
			ID:    "gid://shopify/Product/B",
			Title: "Bravo",
			Variants: []VariantSelection{
				{ID: "gid://shopify/ProductVariant/B1", Title: "Small", Price: 10.00},
				{ID: "gid://shopify/ProductVariant/B2", Title: "Large", Price: 12.00},
			},
		},
		{
			ID:    "gid://shopify/Product/C",
			Title: "Charlie",
			Variants: []VariantSelection{
				{ID: "gid://shopify/ProductVariant/C1", Title: "Default", Price: 5.00},
			},
		},
	}
}

func TestExecuteMixedVariantOutcome(t *testing.T) {
	engine := newFakeQuota(100)
	history := &fakeHistory{}
	client := &fakeCommerce{
		userErrors: map[string][]shopify.UserError{
			"gid://shopify/Product/B": {
				{Field: []string{"variants", "1", "price"}, Message: "Price is out of range"},
			},
		},
	}
	orch := NewOrchestrator(client, engine, history)

	result := orch.Execute(context.Background(), testShop, selectionOf3(), Adjustment{Type: "percentage", Value: 10})
	require.True(t, result.OK)
	assert.Equal(t, 3, result.SuccessCount, "A, B1 and C succeed")
	assert.Equal(t, 1, result.FailureCount, "B2 fails")

	byVariant := map[string]VariantResult{}
	for _, vr := range result.Variants {
		byVariant[vr.VariantID] = vr
	}
	assert.True(t, byVariant["gid://shopify/ProductVariant/A1"].Success)
	assert.True(t, byVariant["gid://shopify/ProductVariant/B1"].Success)
	assert.False(t, byVariant["gid://shopify/ProductVariant/B2"].Success)
	assert.Equal(t, "Price is out of range", byVariant["gid://shopify/ProductVariant/B2"].Error)
	assert.True(t, byVariant["gid://shopify/ProductVariant/C1"].Success)

	// B keeps its quota slot because one of its variants succeeded.
	require.Len(t, engine.committed, 1)
	assert.ElementsMatch(t, []string{
		"gid://shopify/Product/A",
		"gid://shopify/Product/B",
		"gid://shopify/Product/C",
	}, engine.committed[0])

	// One history row per successful variant, none for B2.
	assert.Len(t, history.entries, 3)
	for _, e := range history.entries {
		assert.Equal(t, result.BatchID, e.BatchID)
		assert.NotEqual(t, "gid://shopify/ProductVariant/B2", e.VariantID)
	}
}

func TestExecuteComputesAdjustedPrices(t *testing.T) {
	engine := newFakeQuota(100)
	history := &fakeHistory{}
	client := &fakeCommerce{}
	orch := NewOrchestrator(client, engine, history)

	result := orch.Execute(context.Background(), testShop, selectionOf3()[:1], Adjustment{Type: "percentage", Value: 10})
	require.True(t, result.OK)
	require.Len(t, result.Variants, 1)
	assert.Equal(t, 20.00, result.Variants[0].OldPrice)
	assert.Equal(t, 22.00, result.Variants[0].NewPrice)
}

func TestExecuteTransportFailureDoesNotAbortBatch(t *testing.T) {
	engine := newFakeQuota(100)
	history := &fakeHistory{}
	client := &fakeCommerce{
		failures: map[string]error{
			"gid://shopify/Product/B": errors.New("connection reset"),
		},
	}
	orch := NewOrchestrator(client, engine, history)

	result := orch.Execute(context.Background(), testShop, selectionOf3(), Adjustment{Type: "add", Value: 1})
	require.True(t, result.OK)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount, "both B variants fail together")
	assert.Len(t, client.calls, 3, "remaining products are still processed")

	for _, vr := range result.Variants {
		if vr.ProductID == "gid://shopify/Product/B" {
			assert.False(t, vr.Success)
			assert.NotContains(t, vr.Error, "connection reset", "raw errors must not reach users")
		}
	}

	// B consumed no quota.
	require.Len(t, engine.committed, 1)
	assert.ElementsMatch(t, []string{
		"gid://shopify/Product/A",
		"gid://shopify/Product/C",
	}, engine.committed[0])
}

func TestExecuteQuotaExceededBlocksBeforeExternalCalls(t *testing.T) {
	engine := newFakeQuota(2)
	engine.modified["gid://shopify/Product/X"] = struct{}{}
	engine.modified["gid://shopify/Product/Y"] = struct{}{}
	history := &fakeHistory{}
	client := &fakeCommerce{}
	orch := NewOrchestrator(client, engine, history)

	result := orch.Execute(context.Background(), testShop, selectionOf3(), Adjustment{Type: "add", Value: 1})
	assert.False(t, result.OK)
	assert.True(t, result.QuotaExceeded)
	require.NotNil(t, result.Quota)
	assert.Equal(t, 2, result.Quota.CurrentCount)
	assert.Equal(t, 2, result.Quota.Limit)
	assert.Equal(t, 3, result.Quota.WouldAdd)
	assert.Equal(t, 5, result.Quota.WouldTotal)
	assert.True(t, result.Quota.Upgrade)
	assert.Empty(t, client.calls, "no external mutation on quota rejection")
	assert.Empty(t, engine.committed)
}

func TestExecuteValidationRejectsBatch(t *testing.T) {
	engine := newFakeQuota(100)
	client := &fakeCommerce{}
	orch := NewOrchestrator(client, engine, &fakeHistory{})
	ctx := context.Background()

	result := orch.Execute(ctx, testShop, nil, Adjustment{Type: "add", Value: 1})
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)

	result = orch.Execute(ctx, testShop, selectionOf3(), Adjustment{Type: "multiply", Value: 2})
	assert.False(t, result.OK)
	assert.Contains(t, result.Error, "Invalid adjustment")

	broken := selectionOf3()
	broken[1].Variants = nil
	result = orch.Execute(ctx, testShop, broken, Adjustment{Type: "add", Value: 1})
	assert.False(t, result.OK)
	assert.Empty(t, client.calls, "validation failures abort before any external call")
}

func TestExecuteHistoryFailureIsNonCritical(t *testing.T) {
	engine := newFakeQuota(100)
	history := &fakeHistory{err: errors.New("insert failed")}
	client := &fakeCommerce{}
	orch := NewOrchestrator(client, engine, history)

	result := orch.Execute(context.Background(), testShop, selectionOf3(), Adjustment{Type: "add", Value: 1})
	assert.True(t, result.OK, "history failures must not change the reported outcome")
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
}

func TestExecuteQuotaCommitRaceLogsButKeepsOutcome(t *testing.T) {
	engine := newFakeQuota(100)
	engine.commitErr = repository.ErrQuotaExceeded
	history := &fakeHistory{}
	client := &fakeCommerce{}
	orch := NewOrchestrator(client, engine, history)

	result := orch.Execute(context.Background(), testShop, selectionOf3(), Adjustment{Type: "add", Value: 1})
	assert.True(t, result.OK, "applied price changes are still reported as applied")
	assert.Equal(t, 4, result.SuccessCount)
	require.NotNil(t, result.Quota)
	assert.True(t, result.Quota.Upgrade)
}
