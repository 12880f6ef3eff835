// Package pricing computes bulk price adjustments and drives them through
// the platform's bulk variant mutation, product by product.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/app/repository"
	"github.com/PricePilot/PricePilot/internal/pkg/quota"
	"github.com/PricePilot/PricePilot/internal/pkg/shopify"
	"github.com/go-playground/validator/v10"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// maxSelectionSize bounds one submission; larger selections serialize into
// too many sequential platform calls.
const maxSelectionSize = 250

// VariantSelection is one variant chosen for a price change, carrying its
// known current price.
type VariantSelection struct {
	ID    string  `json:"id" validate:"required"`
	Title string  `json:"title"`
	Price float64 `json:"price" validate:"gte=0"`
}

// ProductSelection is one selected product with the variants to update.
type ProductSelection struct {
	ID       string             `json:"id" validate:"required"`
	Title    string             `json:"title"`
	Variants []VariantSelection `json:"variants" validate:"required,min=1,dive"`
}

// VariantResult records the outcome of one variant price change.
type VariantResult struct {
	ProductID    string  `json:"product_id"`
	ProductTitle string  `json:"product_title"`
	VariantID    string  `json:"variant_id"`
	VariantTitle string  `json:"variant_title"`
	OldPrice     float64 `json:"old_price"`
	NewPrice     float64 `json:"new_price"`
	Success      bool    `json:"success"`
	Error        string  `json:"error,omitempty"`
}

// BatchResult aggregates one bulk price update run.
type BatchResult struct {
	BatchID       string          `json:"batch_id"`
	OK            bool            `json:"ok"`
	Error         string          `json:"error,omitempty"`
	QuotaExceeded bool            `json:"quota_exceeded,omitempty"`
	Quota         *QuotaContext   `json:"quota,omitempty"`
	SuccessCount  int             `json:"success_count"`
	FailureCount  int             `json:"failure_count"`
	UsageCount    int             `json:"usage_count"`
	UsageLimit    int             `json:"usage_limit"`
	Variants      []VariantResult `json:"variants,omitempty"`
}

// QuotaContext is the structured quota detail attached to a rejected or
// completed batch.
type QuotaContext struct {
	CurrentCount int  `json:"current_count"`
	Limit        int  `json:"limit"`
	WouldAdd     int  `json:"would_add"`
	WouldTotal   int  `json:"would_total"`
	Upgrade      bool `json:"upgrade_required"`
}

// QuotaEngine is the slice of the quota engine the orchestrator needs.
type QuotaEngine interface {
	CheckShop(ctx context.Context, shop string, prospective []string) (quota.Feasibility, *models.Subscription, error)
	Commit(ctx context.Context, shop string, productIDs []string) (int, error)
}

// CommerceClient is the slice of the platform API the orchestrator needs.
type CommerceClient interface {
	UpdateVariantPrices(ctx context.Context, productID string, variants []shopify.VariantPriceInput) ([]shopify.UserError, error)
}

// Orchestrator executes validated bulk price updates: quota pre-check, one
// bulk mutation per product, quota commit for products with at least one
// successful variant, then history entries for every applied change.
type Orchestrator struct {
	client   CommerceClient
	quota    QuotaEngine
	history  repository.PricingHistoryRepository
	validate *validator.Validate
}

// NewOrchestrator wires an orchestrator from its collaborators.
func NewOrchestrator(client CommerceClient, engine QuotaEngine, history repository.PricingHistoryRepository) *Orchestrator {
	return &Orchestrator{
		client:   client,
		quota:    engine,
		history:  history,
		validate: validator.New(),
	}
}

// Execute runs one bulk price update for the shop. Validation and quota
// failures reject the whole batch before any platform call; after that,
// failures are recorded per variant and never abort the remaining
// products.
func (o *Orchestrator) Execute(ctx context.Context, shop string, selection []ProductSelection, adj Adjustment) *BatchResult {
	result := &BatchResult{BatchID: uuid.NewString()}

	if msg := o.validateSelection(selection, adj); msg != "" {
		result.Error = msg
		return result
	}

	productIDs := make([]string, 0, len(selection))
	for _, p := range selection {
		productIDs = append(productIDs, p.ID)
	}

	feasibility, sub, err := o.quota.CheckShop(ctx, shop, productIDs)
	if err != nil {
		fiberlog.Errorf("pricing[%s]: quota check failed for %s: %v", result.BatchID, shop, err)
		result.Error = "Your subscription could not be checked. Please try again."
		return result
	}
	result.UsageCount = sub.UsageCount
	result.UsageLimit = sub.UsageLimit
	if feasibility.WouldExceed {
		result.QuotaExceeded = true
		result.Quota = &QuotaContext{
			CurrentCount: sub.UsageCount,
			Limit:        sub.UsageLimit,
			WouldAdd:     len(feasibility.NewProducts),
			WouldTotal:   feasibility.TotalAfter,
			Upgrade:      true,
		}
		result.Error = fmt.Sprintf(
			"This update would modify %d new products, bringing you to %d of your %d product limit. Upgrade your plan to continue.",
			len(feasibility.NewProducts), feasibility.TotalAfter, sub.UsageLimit,
		)
		return result
	}

	succeededProducts := make(map[string]struct{})
	for _, product := range selection {
		o.updateProduct(ctx, product, adj, result, succeededProducts)
	}

	if len(succeededProducts) > 0 {
		ids := make([]string, 0, len(succeededProducts))
		for id := range succeededProducts {
			ids = append(ids, id)
		}
		count, err := o.quota.Commit(ctx, shop, ids)
		if err != nil {
			// The external changes are already applied; record the quota
			// shortfall but do not pretend the price updates failed.
			fiberlog.Errorf("pricing[%s]: quota commit failed for %s after %d successful products: %v",
				result.BatchID, shop, len(ids), err)
			if errors.Is(err, repository.ErrQuotaExceeded) {
				result.Quota = &QuotaContext{
					CurrentCount: result.UsageCount,
					Limit:        result.UsageLimit,
					WouldAdd:     len(ids),
					Upgrade:      true,
				}
			}
		} else {
			result.UsageCount = count
		}
	}

	o.appendHistory(shop, result, adj)

	result.OK = result.SuccessCount > 0 || result.FailureCount == 0
	return result
}

// validateSelection applies all input checks up front; any failure rejects
// the batch with one user-facing message and no partial processing.
func (o *Orchestrator) validateSelection(selection []ProductSelection, adj Adjustment) string {
	if len(selection) == 0 {
		return "No products selected."
	}
	if len(selection) > maxSelectionSize {
		return fmt.Sprintf("Too many products selected (max %d per update).", maxSelectionSize)
	}
	if err := adj.Validate(); err != nil {
		return "Invalid adjustment: " + err.Error()
	}
	for i, p := range selection {
		if err := o.validate.Struct(p); err != nil {
			return fmt.Sprintf("Product %d has missing or invalid data.", i+1)
		}
	}
	return ""
}

// updateProduct submits all variant changes for one product as a single
// bulk mutation and records per-variant outcomes. Transport and
// product-level failures mark every variant failed without stopping the
// batch.
func (o *Orchestrator) updateProduct(ctx context.Context, product ProductSelection, adj Adjustment, result *BatchResult, succeeded map[string]struct{}) {
	inputs := make([]shopify.VariantPriceInput, 0, len(product.Variants))
	variantResults := make([]VariantResult, 0, len(product.Variants))
	for _, v := range product.Variants {
		newPrice := adj.Apply(v.Price)
		inputs = append(inputs, shopify.VariantPriceInput{ID: v.ID, Price: newPrice})
		variantResults = append(variantResults, VariantResult{
			ProductID:    product.ID,
			ProductTitle: product.Title,
			VariantID:    v.ID,
			VariantTitle: v.Title,
			OldPrice:     v.Price,
			NewPrice:     newPrice,
			Success:      true,
		})
	}

	userErrors, err := o.client.UpdateVariantPrices(ctx, product.ID, inputs)
	if err != nil {
		fiberlog.Errorf("pricing[%s]: bulk update failed for product %s: %v", result.BatchID, product.ID, err)
		for i := range variantResults {
			variantResults[i].Success = false
			variantResults[i].Error = "The price update could not be submitted. Please try again."
		}
	} else {
		for _, ue := range userErrors {
			if idx, ok := variantIndexFromField(ue.Field); ok && idx < len(variantResults) {
				variantResults[idx].Success = false
				variantResults[idx].Error = ue.Message
			} else {
				// Product-scoped error: every variant of this product failed.
				for i := range variantResults {
					variantResults[i].Success = false
					variantResults[i].Error = ue.Message
				}
				break
			}
		}
	}

	for _, vr := range variantResults {
		if vr.Success {
			result.SuccessCount++
			succeeded[product.ID] = struct{}{}
		} else {
			result.FailureCount++
		}
	}
	result.Variants = append(result.Variants, variantResults...)
}

// appendHistory writes one history row per successful variant change.
// History is best-effort: a write failure is logged and the price update
// outcome stands.
func (o *Orchestrator) appendHistory(shop string, result *BatchResult, adj Adjustment) {
	entries := make([]models.PricingHistory, 0, result.SuccessCount)
	for _, vr := range result.Variants {
		if !vr.Success {
			continue
		}
		entries = append(entries, models.PricingHistory{
			Shop:           shop,
			BatchID:        result.BatchID,
			ProductID:      vr.ProductID,
			ProductTitle:   vr.ProductTitle,
			VariantID:      vr.VariantID,
			VariantTitle:   vr.VariantTitle,
			AdjustmentType: adj.Type,
			AdjustmentVal:  adj.Value,
			OldPrice:       vr.OldPrice,
			NewPrice:       vr.NewPrice,
		})
	}
	if len(entries) == 0 {
		return
	}
	if err := o.history.CreateBatch(entries); err != nil {
		fiberlog.Errorf("pricing[%s]: history write failed for %s (%d entries): %v",
			result.BatchID, shop, len(entries), err)
	}
}

// variantIndexFromField extracts the variant index from a field-scoped
// error path such as ["variants", "1", "price"].
func variantIndexFromField(field []string) (int, bool) {
	for i, part := range field {
		if part != "variants" || i+1 >= len(field) {
			continue
		}
		if idx, err := strconv.Atoi(field[i+1]); err == nil && idx >= 0 {
			return idx, true
		}
	}
	return 0, false
}
