package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/atmx/paper-engine/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %s, got %s", want, got)
}

func TestApplyBuy_NewPosition(t *testing.T) {
	l := New(nil)
	l.ApplyBuy("XYZ", d("10"), d("50.05"))

	p, ok := l.Position("XYZ")
	require.True(t, ok)
	assertDecimal(t, "10", p.Quantity)
	assertDecimal(t, "50.05", p.AvgCostBasis)
	assert.Equal(t, 1, l.Len())
}

func TestApplyBuy_WeightedAverage(t *testing.T) {
	l := New(nil)
	l.ApplyBuy("XYZ", d("10"), d("100"))
	l.ApplyBuy("XYZ", d("30"), d("120"))

	p, _ := l.Position("XYZ")
	assertDecimal(t, "40", p.Quantity)
	// (10×100 + 30×120) / 40 = 115
	assertDecimal(t, "115", p.AvgCostBasis)
}

func TestApplyBuy_PanicsOnInvalidFill(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		qty    string
		price  string
	}{
		{"empty ticker", "", "1", "1"},
		{"zero quantity", "XYZ", "0", "1"},
		{"negative price", "XYZ", "1", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(nil)
			assert.Panics(t, func() { l.ApplyBuy(tt.ticker, d(tt.qty), d(tt.price)) })
			assert.Equal(t, 0, l.Len())
		})
	}

	// A non-positive add to a held position must not corrupt it either.
	l := New(nil)
	l.ApplyBuy("XYZ", d("10"), d("50"))
	assert.Panics(t, func() { l.ApplyBuy("XYZ", d("0"), d("50")) })
	p, _ := l.Position("XYZ")
	assertDecimal(t, "10", p.Quantity)
	assertDecimal(t, "50", p.AvgCostBasis)
}

func TestApplySell_KeepsAverage(t *testing.T) {
	l := New(nil)
	l.ApplyBuy("XYZ", d("10"), d("100"))
	l.ApplyBuy("XYZ", d("10"), d("110"))
	l.ApplySell("XYZ", d("15"))

	p, ok := l.Position("XYZ")
	require.True(t, ok)
	assertDecimal(t, "5", p.Quantity)
	assertDecimal(t, "105", p.AvgCostBasis)
}

func TestApplySell_FullQuantityRemovesPosition(t *testing.T) {
	l := New(nil)
	l.ApplyBuy("XYZ", d("10"), d("50"))
	l.ApplyBuy("ABC", d("1"), d("5"))
	l.ApplySell("XYZ", d("10"))

	_, ok := l.Position("XYZ")
	assert.False(t, ok, "zero-quantity position must be deleted")
	assert.Equal(t, 1, l.Len())
	for _, p := range l.Positions() {
		assert.True(t, p.Quantity.IsPositive())
	}
}

func TestLedger_MutatesWrappedMap(t *testing.T) {
	m := map[string]model.Position{
		"AAPL": {Ticker: "AAPL", Quantity: d("2"), AvgCostBasis: d("150")},
	}
	l := New(m)
	l.ApplyBuy("MSFT", d("1"), d("400"))
	l.ApplySell("AAPL", d("2"))

	assert.Len(t, m, 1)
	assert.Contains(t, m, "MSFT")
}

func TestPositions_Sorted(t *testing.T) {
	l := New(nil)
	for _, tk := range []string{"TSLA", "AAPL", "MSFT"} {
		l.ApplyBuy(tk, d("1"), d("1"))
	}
	got := l.Positions()
	require.Len(t, got, 3)
	assert.Equal(t, "AAPL", got[0].Ticker)
	assert.Equal(t, "MSFT", got[1].Ticker)
	assert.Equal(t, "TSLA", got[2].Ticker)
}

type fill struct {
	qty   decimal.Decimal
	price decimal.Decimal
}

func drawFills(t *rapid.T) []fill {
	n := rapid.IntRange(1, 12).Draw(t, "n")
	fills := make([]fill, n)
	for i := range fills {
		fills[i] = fill{
			qty:   decimal.NewFromInt(rapid.Int64Range(1, 1000).Draw(t, "qty")),
			price: decimal.New(rapid.Int64Range(1, 1_000_000).Draw(t, "cents"), -2),
		}
	}
	return fills
}

// Average cost after any sequence of buys is the quantity-weighted mean of
// the fill prices, whatever order the buys arrive in.
func TestProperty_WeightedAverageOrderIndependent(t *testing.T) {
	tolerance := d("0.000000001")

	rapid.Check(t, func(t *rapid.T) {
		fills := drawFills(t)
		shuffled := rapid.Permutation(fills).Draw(t, "order")

		totalQty, totalCost := decimal.Zero, decimal.Zero
		for _, f := range fills {
			totalQty = totalQty.Add(f.qty)
			totalCost = totalCost.Add(f.qty.Mul(f.price))
		}
		want := totalCost.Div(totalQty)

		for _, seq := range [][]fill{fills, shuffled} {
			l := New(nil)
			for _, f := range seq {
				l.ApplyBuy("XYZ", f.qty, f.price)
			}
			p, ok := l.Position("XYZ")
			if !ok {
				t.Fatal("position missing")
			}
			if !p.Quantity.Equal(totalQty) {
				t.Fatalf("quantity %s != %s", p.Quantity, totalQty)
			}
			if p.AvgCostBasis.Sub(want).Abs().GreaterThan(tolerance) {
				t.Fatalf("avg %s != weighted mean %s", p.AvgCostBasis, want)
			}
		}
	})
}

func TestProperty_SellNeverChangesAverage(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		l := New(nil)
		for _, f := range drawFills(t) {
			l.ApplyBuy("XYZ", f.qty, f.price)
		}
		before, _ := l.Position("XYZ")

		sellQty := decimal.NewFromInt(rapid.Int64Range(1, before.Quantity.IntPart()).Draw(t, "sell"))
		l.ApplySell("XYZ", sellQty)

		after, ok := l.Position("XYZ")
		if sellQty.Equal(before.Quantity) {
			if ok {
				t.Fatalf("position should be removed, got %+v", after)
			}
			return
		}
		if !ok {
			t.Fatal("partial sell removed the position")
		}
		if !after.AvgCostBasis.Equal(before.AvgCostBasis) {
			t.Fatalf("avg changed on sell: %s -> %s", before.AvgCostBasis, after.AvgCostBasis)
		}
		if !after.Quantity.Equal(before.Quantity.Sub(sellQty)) {
			t.Fatalf("quantity %s, want %s", after.Quantity, before.Quantity.Sub(sellQty))
		}
	})
}
