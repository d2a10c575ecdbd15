package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"17.9982", "18"},
		{"17.994", "17.99"},
		{"17.995", "18"},
		{"-17.995", "-18"},
		{"100", "100"},
	}
	for _, tc := range cases {
		got := Round2(decimal.RequireFromString(tc.in))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Round2(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSameAmount(t *testing.T) {
	a := decimal.RequireFromString("100.001")
	b := decimal.RequireFromString("100.004")
	if !SameAmount(a, b) {
		t.Fatal("amounts equal at currency precision reported different")
	}
	c := decimal.RequireFromString("100.01")
	if SameAmount(a, c) {
		t.Fatal("amounts differing by a paisa reported equal")
	}
}

func TestTaxExclusiveBase(t *testing.T) {
	got := TaxExclusiveBase(decimal.NewFromInt(118), decimal.NewFromInt(18))
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("base = %s, want 100", got)
	}
	// 112 inclusive @ 12% -> 100
	got = TaxExclusiveBase(decimal.NewFromInt(112), decimal.NewFromInt(12))
	if !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("base = %s, want 100", got)
	}
	// Non-terminating division keeps 4 decimals.
	got = TaxExclusiveBase(decimal.NewFromInt(100), decimal.NewFromInt(18))
	if !got.Equal(decimal.RequireFromString("84.7458")) {
		t.Fatalf("base = %s, want 84.7458", got)
	}
}

func TestPercentOf(t *testing.T) {
	got := PercentOf(decimal.NewFromInt(1000), decimal.NewFromInt(18))
	if !got.Equal(decimal.NewFromInt(180)) {
		t.Fatalf("18%% of 1000 = %s, want 180", got)
	}
	got = PercentOf(decimal.RequireFromString("33.33"), decimal.NewFromInt(18))
	if !got.Equal(decimal.RequireFromString("5.9994")) {
		t.Fatalf("18%% of 33.33 = %s, want 5.9994", got)
	}
}

// PercentOf must carry the exact product so a single Round2 decides the
// paisa. 5% of 20.099 is exactly 1.00495; rounding that at currency
// precision gives 1.00, and any intermediate 4-decimal rounding would push
// it to 1.01.
func TestPercentOfExactAtRoundingBoundary(t *testing.T) {
	exact := PercentOf(decimal.RequireFromString("20.099"), decimal.NewFromInt(5))
	if !exact.Equal(decimal.RequireFromString("1.00495")) {
		t.Fatalf("5%% of 20.099 = %s, want 1.00495", exact)
	}
	if got := Round2(exact); !got.Equal(decimal.RequireFromString("1.00")) {
		t.Fatalf("rounded tax = %s, want 1.00", got)
	}
}
