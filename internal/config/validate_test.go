package config

import "testing"

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidateInvalidTradingMode(t *testing.T) {
	cfg := Default()
	cfg.TradingMode = "invalid-mode"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid trading_mode to fail validation")
	}
}

func TestValidateInvalidPaperConfig(t *testing.T) {
	cfg := Default()
	cfg.Paper.InitialBalanceUSDC = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected non-positive paper.initial_balance_usdc to fail validation")
	}

	cfg = Default()
	cfg.Paper.FeeBps = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected negative paper.fee_bps to fail validation")
	}
}

func TestValidateInvalidIntervalDuration(t *testing.T) {
	cfg := Default()
	cfg.Interval.DurationSeconds = 901
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected non-multiple-of-60 interval duration to fail validation")
	}
}

func TestValidateInvalidEdgeBookDepthFraction(t *testing.T) {
	cfg := Default()
	cfg.Edge.BookDepthFraction = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected book_depth_fraction > 1 to fail validation")
	}
}

func TestValidateInvalidVenuePriceBounds(t *testing.T) {
	cfg := Default()
	cfg.VenueA.PriceFloor = 0.9
	cfg.VenueA.PriceCeil = 0.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected inverted venue price bounds to fail validation")
	}
}

func TestValidateInvalidRiskNotional(t *testing.T) {
	cfg := Default()
	cfg.Risk.MaxNotional = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected non-positive risk.max_notional to fail validation")
	}
}
