// Package venue defines the abstraction boundary between the engine and
// each trading venue's wire protocol. The engine talks to exactly this
// interface; Polymarket-, Kalshi- or any other venue-specific client
// lives behind an adapter that implements it.
package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ID string

// Outcome is the result of a single order placement attempt.
type Outcome int

const (
	OutcomeFilled Outcome = iota
	OutcomeNotFilled
	OutcomeRejected
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "filled"
	case OutcomeNotFilled:
		return "not-filled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// OrderType mirrors the two order shapes the executor ever issues: a
// fill-or-kill limit for leg A and leg B, and a marketable order for
// unwind.
type OrderType int

const (
	OrderTypeFOK OrderType = iota
	OrderTypeMarket
)

type OrderRequest struct {
	ClientOrderID string
	MarketID      string
	Side          string // "yes" or "no"
	Type          OrderType
	LimitPrice    decimal.Decimal
	Qty           int64
}

type OrderResult struct {
	Outcome    Outcome
	FilledQty  int64
	FillPrice  decimal.Decimal
	Reason     string
	RemoteID   string
	ReceivedAt time.Time
}

// BookUpdate is one venue's raw depth update, prior to normalization.
type BookUpdate struct {
	MarketID  string
	Side      string
	Price     decimal.Decimal
	Size      int64
	Timestamp time.Time
}

type Position struct {
	MarketID string
	Side     string
	Qty      int64
}

// Client is the contract every venue adapter must satisfy. All methods
// must be safe to call from the single event loop goroutine; any
// internal concurrency (reconnects, heartbeats) is the adapter's problem
// to hide behind this interface.
type Client interface {
	ID() ID
	SubscribeBook(ctx context.Context, marketIDs []string) (<-chan BookUpdate, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelAll(ctx context.Context, marketID string) error
	GetPositions(ctx context.Context) ([]Position, error)
	Close() error
}
