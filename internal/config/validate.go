package config

import (
	"fmt"
	"strings"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.TradingMode))
	if mode != "" && mode != "paper" && mode != "live" {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}

	if c.Paper.InitialBalanceUSDC <= 0 {
		return fmt.Errorf("paper.initial_balance_usdc must be > 0, got %f", c.Paper.InitialBalanceUSDC)
	}
	if c.Paper.FeeBps < 0 {
		return fmt.Errorf("paper.fee_bps must be >= 0, got %f", c.Paper.FeeBps)
	}
	if c.Paper.SlippageBps < 0 {
		return fmt.Errorf("paper.slippage_bps must be >= 0, got %f", c.Paper.SlippageBps)
	}

	if c.Interval.DurationSeconds <= 0 || c.Interval.DurationSeconds%60 != 0 {
		return fmt.Errorf("interval.duration_seconds must be a positive multiple of 60, got %d", c.Interval.DurationSeconds)
	}
	if c.Interval.PrepareLead <= 0 {
		return fmt.Errorf("interval.prepare_lead must be > 0, got %s", c.Interval.PrepareLead)
	}
	if c.Interval.SettleDelay < 0 {
		return fmt.Errorf("interval.settle_delay must be >= 0, got %s", c.Interval.SettleDelay)
	}

	if c.Edge.MinEdgeNet < 0 {
		return fmt.Errorf("edge.min_edge_net must be >= 0, got %f", c.Edge.MinEdgeNet)
	}
	if c.Edge.SlippageBufferPerLeg < 0 {
		return fmt.Errorf("edge.slippage_buffer_per_leg must be >= 0, got %f", c.Edge.SlippageBufferPerLeg)
	}
	if c.Edge.BookDepthFraction <= 0 || c.Edge.BookDepthFraction > 1 {
		return fmt.Errorf("edge.book_depth_fraction must be within (0,1], got %f", c.Edge.BookDepthFraction)
	}
	if c.Edge.MaxQtyPerTrade <= 0 {
		return fmt.Errorf("edge.max_qty_per_trade must be > 0, got %d", c.Edge.MaxQtyPerTrade)
	}
	if c.Edge.StaleQuote <= 0 {
		return fmt.Errorf("edge.stale_quote must be > 0, got %s", c.Edge.StaleQuote)
	}

	if c.Risk.MaxDailyLoss <= 0 {
		return fmt.Errorf("risk.max_daily_loss must be > 0, got %f", c.Risk.MaxDailyLoss)
	}
	if c.Risk.MaxNotional <= 0 {
		return fmt.Errorf("risk.max_notional must be > 0, got %f", c.Risk.MaxNotional)
	}
	if c.Risk.MaxOpenOrdersPerVenue <= 0 {
		return fmt.Errorf("risk.max_open_orders_per_venue must be > 0, got %d", c.Risk.MaxOpenOrdersPerVenue)
	}
	if c.Risk.CooldownAfterFailure < 0 {
		return fmt.Errorf("risk.cooldown_after_failure must be >= 0, got %s", c.Risk.CooldownAfterFailure)
	}

	if c.Executor.MaxLegDelay <= 0 {
		return fmt.Errorf("executor.max_leg_delay must be > 0, got %s", c.Executor.MaxLegDelay)
	}
	if c.Executor.LegAFillTimeout <= 0 {
		return fmt.Errorf("executor.leg_a_fill_timeout must be > 0, got %s", c.Executor.LegAFillTimeout)
	}
	if c.Executor.LegBFillTimeout <= 0 {
		return fmt.Errorf("executor.leg_b_fill_timeout must be > 0, got %s", c.Executor.LegBFillTimeout)
	}
	if c.Executor.MaxUnhedgedTime <= 0 {
		return fmt.Errorf("executor.max_unhedged_time must be > 0, got %s", c.Executor.MaxUnhedgedTime)
	}
	if c.Executor.UnwindTimeout <= 0 {
		return fmt.Errorf("executor.unwind_timeout must be > 0, got %s", c.Executor.UnwindTimeout)
	}

	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconciler.interval must be > 0, got %s", c.Reconciler.Interval)
	}
	if c.Reconciler.ToleranceContracts < 0 {
		return fmt.Errorf("reconciler.tolerance_contracts must be >= 0, got %d", c.Reconciler.ToleranceContracts)
	}

	for _, v := range []VenueConfig{c.VenueA, c.VenueB} {
		if v.Name == "" {
			return fmt.Errorf("venue name must not be empty")
		}
		if v.MinOrderSize <= 0 {
			return fmt.Errorf("venue %s: min_order_size must be > 0, got %f", v.Name, v.MinOrderSize)
		}
		if v.MaxOpenOrders <= 0 {
			return fmt.Errorf("venue %s: max_open_orders must be > 0, got %d", v.Name, v.MaxOpenOrders)
		}
		if v.PriceFloor < 0 || v.PriceCeil > 1 || v.PriceFloor >= v.PriceCeil {
			return fmt.Errorf("venue %s: price bounds invalid [%f, %f]", v.Name, v.PriceFloor, v.PriceCeil)
		}
	}

	return nil
}
