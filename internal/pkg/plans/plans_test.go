package plans

import "testing"

func TestByName(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{in: "free", want: "free", found: true},
		{in: "standard", want: "standard", found: true},
		{in: "  Pro ", want: "pro", found: true},
		{in: "STANDARD", want: "standard", found: true},
		{in: "enterprise", found: false},
		{in: "", found: false},
	}

	for _, tt := range tests {
		p, ok := ByName(tt.in)
		if ok != tt.found {
			t.Fatalf("ByName(%q) found = %v, want %v", tt.in, ok, tt.found)
		}
		if ok && p.Name != tt.want {
			t.Fatalf("ByName(%q) = %q, want %q", tt.in, p.Name, tt.want)
		}
	}
}

func TestMatchByPrice(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
		found  bool
	}{
		{amount: 29.99, want: "standard", found: true},
		{amount: 30.00, want: "standard", found: true},
		{amount: 79.99, want: "pro", found: true},
		{amount: 0, want: "free", found: true},
		{amount: 0.04, want: "free", found: true},
		{amount: 55.00, found: false},
		{amount: 29.90, found: false},
	}

	for _, tt := range tests {
		p, ok := MatchByPrice(tt.amount)
		if ok != tt.found {
			t.Fatalf("MatchByPrice(%v) found = %v, want %v", tt.amount, ok, tt.found)
		}
		if ok && p.Name != tt.want {
			t.Fatalf("MatchByPrice(%v) = %q, want %q", tt.amount, p.Name, tt.want)
		}
	}
}

func TestMatchByPriceTieBreak(t *testing.T) {
	// Equidistant amounts resolve to the first catalog tier. There is no
	// such midpoint between the real tiers within tolerance, so exercise
	// the exact-match path instead: an exact tier price must win even when
	// another tier is within tolerance of it.
	p, ok := MatchByPrice(29.99)
	if !ok || p.Name != PlanStandard {
		t.Fatalf("expected exact price to match standard, got %v %v", p.Name, ok)
	}
}

func TestCatalogInvariants(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("catalog must not be empty")
	}
	if !all[0].IsFree() {
		t.Fatal("free tier must come first in catalog order")
	}
	for _, p := range all {
		if p.UsageLimit <= 0 {
			t.Fatalf("plan %q has non-positive usage limit", p.Name)
		}
		if p.IsFree() && p.Price != 0 {
			t.Fatalf("free plan must cost nothing, got %v", p.Price)
		}
	}
}
