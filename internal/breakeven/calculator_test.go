package breakeven

import (
	"math"
	"testing"

	"github.com/quietridge/boxmaker/pkg/boxtypes"
)

func within(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("got %v, want %v (tolerance %v)", got, want, tol)
	}
}

func TestMaxBidFreshYes(t *testing.T) {
	c := New(0.99, 0.005, nil)
	got := c.MaxBid(boxtypes.OutcomeYes, Position{}, Position{}, 10)
	within(t, got, 0.985, 1e-3)
}

func TestMaxBidPartnerPressure(t *testing.T) {
	c := New(0.99, 0.005, nil)
	no := Position{AvgCost: 0.50}
	got := c.MaxBid(boxtypes.OutcomeYes, Position{}, no, 10)
	within(t, got, 0.485, 1e-3)
}

func TestMaxBidExistingInventory(t *testing.T) {
	c := New(0.99, 0.005, nil)
	yes := Position{TotalQty: 10, TotalSpend: 4.0}
	no := Position{AvgCost: 0.50}
	got := c.MaxBid(boxtypes.OutcomeYes, yes, no, 5)
	within(t, got, 0.655, 1e-3)
}

func TestMaxBidExhaustion(t *testing.T) {
	c := New(0.99, 0.005, nil)
	no := Position{AvgCost: 0.99}
	got := c.MaxBid(boxtypes.OutcomeYes, Position{}, no, 10)
	within(t, got, 0.0, 1e-9)
}

func TestIsBidValid(t *testing.T) {
	c := New(0.99, 0.005, nil)
	no := Position{AvgCost: 0.50}
	if !c.IsBidValid(boxtypes.OutcomeYes, 0.40, 10, Position{}, no) {
		t.Fatalf("expected 0.40 bid to be valid under max ~0.485")
	}
	if c.IsBidValid(boxtypes.OutcomeYes, 0.60, 10, Position{}, no) {
		t.Fatalf("expected 0.60 bid to exceed max ~0.485")
	}
}

func TestProfitMargin(t *testing.T) {
	got := ProfitMargin(0.45, 0.50)
	within(t, got, 0.05, 1e-9)
}

func TestMaxBidClampsToBounds(t *testing.T) {
	c := New(0.99, 0.005, nil)
	// No partner cost at all and huge existing inventory pushes the
	// unclamped formula above 0.99; it must still clamp.
	yes := Position{TotalQty: 1000, TotalSpend: 0}
	got := c.MaxBid(boxtypes.OutcomeYes, yes, Position{}, 1)
	if got > maxPrice {
		t.Fatalf("MaxBid() = %v, want <= %v", got, maxPrice)
	}
}
