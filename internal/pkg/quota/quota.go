// Package quota implements the unique-product quota math and the single
// choke point through which modified products are committed.
//
// A shop's plan limits how many distinct products it may modify per billing
// period. Touching a product a second time (or touching many variants of
// one product) never consumes additional quota. Feasibility math is pure;
// the commit itself is delegated to the repository's atomic conditional
// union so concurrent bulk edits cannot jointly overshoot the limit.
package quota

import (
	"context"

	"github.com/PricePilot/PricePilot/app/models"
	"github.com/PricePilot/PricePilot/app/repository"
)

// Feasibility is the outcome of checking a prospective set of product edits
// against the current modified set and plan limit.
type Feasibility struct {
	NewProducts     []string `json:"new_products"`
	AlreadyModified []string `json:"already_modified"`
	TotalAfter      int      `json:"total_after"`
	WouldExceed     bool     `json:"would_exceed"`
}

// Check computes feasibility for the prospective product IDs. Duplicate IDs
// in the input collapse; IDs already in the modified set cost nothing. A
// limit of zero or less means unlimited.
func Check(prospective []string, modified map[string]struct{}, limit int) Feasibility {
	f := Feasibility{
		NewProducts:     []string{},
		AlreadyModified: []string{},
	}
	seen := make(map[string]struct{}, len(prospective))
	for _, id := range prospective {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := modified[id]; ok {
			f.AlreadyModified = append(f.AlreadyModified, id)
		} else {
			f.NewProducts = append(f.NewProducts, id)
		}
	}
	f.TotalAfter = len(modified) + len(f.NewProducts)
	f.WouldExceed = limit > 0 && f.TotalAfter > limit
	return f
}

// SetOf builds a membership set from a slice of product IDs.
func SetOf(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Engine binds the pure feasibility math to a shop's persisted subscription
// record.
type Engine struct {
	subs repository.SubscriptionRepository
}

// NewEngine creates a quota engine over the subscription repository.
func NewEngine(subs repository.SubscriptionRepository) *Engine {
	return &Engine{subs: subs}
}

// CheckShop loads the shop's record and modified set and runs the
// feasibility check. The returned record reflects the current period.
func (e *Engine) CheckShop(ctx context.Context, shop string, prospective []string) (Feasibility, *models.Subscription, error) {
	_ = ctx
	sub, err := e.subs.GetOrCreateByShop(shop)
	if err != nil {
		return Feasibility{}, nil, err
	}
	ids, err := e.subs.ModifiedProductIDs(shop)
	if err != nil {
		return Feasibility{}, nil, err
	}
	return Check(prospective, SetOf(ids), sub.UsageLimit), sub, nil
}

// Commit records the given product IDs as modified this period. The union
// is idempotent and conditional: if the resulting set would exceed the
// shop's limit the repository rolls back and returns
// repository.ErrQuotaExceeded. Returns the usage count after the commit.
func (e *Engine) Commit(ctx context.Context, shop string, productIDs []string) (int, error) {
	_ = ctx
	if len(productIDs) == 0 {
		sub, err := e.subs.GetOrCreateByShop(shop)
		if err != nil {
			return 0, err
		}
		return sub.UsageCount, nil
	}
	sub, err := e.subs.GetOrCreateByShop(shop)
	if err != nil {
		return 0, err
	}
	return e.subs.CommitModifiedProducts(shop, productIDs, sub.UsageLimit)
}
