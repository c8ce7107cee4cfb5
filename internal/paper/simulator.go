// Package paper implements the dry-run mode of §4.7: a venue.Client
// decorator that passes real market data through unchanged but simulates
// order fills against a configurable fee and slippage, so the full
// engine can run end to end without ever sending a live order.
// Adapted from the reference engine's paper simulator: the same
// fee-in-bps/slippage-in-bps fill arithmetic and running balance ledger,
// rebuilt on decimal.Decimal and venue.OrderRequest/OrderResult instead
// of float64 and a raw orderbook snapshot.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbengine/boxarb/internal/venue"
)

type Config struct {
	InitialBalanceUSDC float64 `yaml:"initial_balance_usdc"`
	FeeBps             float64 `yaml:"fee_bps"`
	SlippageBps        float64 `yaml:"slippage_bps"`
}

// Snapshot is a point-in-time read of the paper ledger, for the status
// surface.
type Snapshot struct {
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	FeesPaid       decimal.Decimal `json:"fees_paid"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	TotalTrades    int             `json:"total_trades"`
}

// Simulator wraps a real venue.Client, letting book data flow through
// unmodified while every PlaceOrder call is filled against this ledger
// instead of the live venue.
type Simulator struct {
	mu sync.Mutex

	id         venue.ID
	underlying venue.Client
	feeBps     decimal.Decimal
	slipBps    decimal.Decimal

	sequence       int64
	initialBalance decimal.Decimal
	balance        decimal.Decimal
	feesPaid       decimal.Decimal
	volume         decimal.Decimal
	trades         int
	positions      map[string]int64          // side -> signed contract count
	lastPrice      map[string]decimal.Decimal // side -> last fill price, for market unwinds
}

// NewSimulator wraps underlying (the real venue client supplying book
// data and positions) with a paper fill ledger seeded from cfg.
func NewSimulator(id venue.ID, underlying venue.Client, cfg Config) *Simulator {
	initial := cfg.InitialBalanceUSDC
	if initial <= 0 {
		initial = 1000
	}
	return &Simulator{
		id:             id,
		underlying:     underlying,
		feeBps:         decimal.NewFromFloat(cfg.FeeBps),
		slipBps:        decimal.NewFromFloat(cfg.SlippageBps),
		initialBalance: decimal.NewFromFloat(initial),
		balance:        decimal.NewFromFloat(initial),
		positions:      make(map[string]int64),
		lastPrice:      make(map[string]decimal.Decimal),
	}
}

func (s *Simulator) ID() venue.ID { return s.id }

// SubscribeBook passes the real feed through untouched — dry-run mode
// simulates execution, not market data.
func (s *Simulator) SubscribeBook(ctx context.Context, marketIDs []string) (<-chan venue.BookUpdate, error) {
	return s.underlying.SubscribeBook(ctx, marketIDs)
}

func (s *Simulator) GetPositions(ctx context.Context) ([]venue.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]venue.Position, 0, len(s.positions))
	for side, qty := range s.positions {
		out = append(out, venue.Position{MarketID: string(s.id), Side: side, Qty: qty})
	}
	return out, nil
}

// CancelAll is a no-op: the simulator never leaves a resting order,
// since every request is either filled immediately or rejected.
func (s *Simulator) CancelAll(ctx context.Context, marketID string) error { return nil }

func (s *Simulator) Close() error {
	if s.underlying != nil {
		return s.underlying.Close()
	}
	return nil
}

// applySlippage worsens the fill price against the taker, matching the
// reference simulator's convention: buying always costs slightly more,
// selling always nets slightly less.
func (s *Simulator) applySlippage(price decimal.Decimal, buy bool) decimal.Decimal {
	if !s.slipBps.IsPositive() {
		return price
	}
	mult := s.slipBps.Div(decimal.NewFromInt(10000))
	if buy {
		return price.Mul(decimal.NewFromInt(1).Add(mult))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(mult))
}

// PlaceOrder simulates the fill the request would have received live. A
// FOK order either fills completely at the slipped limit price or is
// rejected outright (never partially); a market order (used for leg-A
// unwind) always fills, modeling the belief that a marketable order on a
// liquid box interval clears.
func (s *Simulator) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Qty <= 0 {
		return venue.OrderResult{}, fmt.Errorf("paper: qty must be positive")
	}

	price := req.LimitPrice
	buy := true // both yes and no legs of a box are always buys, never shorts
	if req.Type == venue.OrderTypeMarket {
		// Unwind sells back the side just bought. It fills at
		// req.LimitPrice (the executor passes the side's current best
		// bid); when LimitPrice is zero it falls back to the last fill
		// price this simulator recorded for the side.
		buy = false
		if price.IsZero() {
			price = s.lastPriceLocked(req.Side)
		}
	}

	execPrice := s.applySlippage(price, buy)
	notional := execPrice.Mul(decimal.NewFromInt(req.Qty))
	fee := notional.Mul(s.feeBps).Div(decimal.NewFromInt(10000)).Round(2)

	if buy && notional.Add(fee).GreaterThan(s.balance) {
		return venue.OrderResult{Outcome: venue.OutcomeRejected, Reason: "insufficient paper balance"}, nil
	}

	s.sequence++
	remoteID := fmt.Sprintf("paper-%06d", s.sequence)

	if buy {
		s.balance = s.balance.Sub(notional).Sub(fee)
		s.positions[req.Side] += req.Qty
	} else {
		s.balance = s.balance.Add(notional).Sub(fee)
		s.positions[req.Side] -= req.Qty
	}
	s.feesPaid = s.feesPaid.Add(fee)
	s.volume = s.volume.Add(notional)
	s.trades++
	s.lastPrice[req.Side] = execPrice

	return venue.OrderResult{
		Outcome:    venue.OutcomeFilled,
		FilledQty:  req.Qty,
		FillPrice:  execPrice,
		RemoteID:   remoteID,
		ReceivedAt: time.Now(),
	}, nil
}

func (s *Simulator) lastPriceLocked(side string) decimal.Decimal {
	return s.lastPrice[side]
}

func (s *Simulator) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		InitialBalance: s.initialBalance,
		Balance:        s.balance,
		FeesPaid:       s.feesPaid,
		TotalVolume:    s.volume,
		TotalTrades:    s.trades,
	}
}
