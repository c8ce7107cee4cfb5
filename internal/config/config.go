package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete, once-loaded process configuration. It is passed
// down by value/pointer to component constructors; nothing reads it from a
// package-level singleton.
type Config struct {
	DryRun      bool   `yaml:"dry_run"`
	TradingMode string `yaml:"trading_mode"`
	LogLevel    string `yaml:"log_level"`
	LogDir      string `yaml:"log_dir"`

	VenueA VenueConfig `yaml:"venue_a"`
	VenueB VenueConfig `yaml:"venue_b"`

	Interval   IntervalConfig   `yaml:"interval"`
	Edge       EdgeConfig       `yaml:"edge"`
	Risk       RiskConfig       `yaml:"risk"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Paper      PaperConfig      `yaml:"paper"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	API        APIConfig        `yaml:"api"`
}

// VenueConfig carries per-venue operational knobs. Authentication and
// signing material belong to the venue adapter, not this config: it is an
// external collaborator per the engine's scope.
type VenueConfig struct {
	Name               string  `yaml:"name"`
	MakerFeeBps        float64 `yaml:"maker_fee_bps"`
	TakerFeeBps        float64 `yaml:"taker_fee_bps"`
	MinOrderSize       float64 `yaml:"min_order_size"`
	MaxOpenOrders      int     `yaml:"max_open_orders"`
	PriceFloor         float64 `yaml:"price_floor"`
	PriceCeil          float64 `yaml:"price_ceil"`
	PublishesBothSides bool    `yaml:"publishes_both_sides"`

	// WSURL and RESTBaseURL point the generic internal/wsfeed transport
	// at this venue's endpoints. The bearer token is never read from
	// YAML; it is supplied at startup via BOXARB_<NAME>_TOKEN.
	WSURL       string `yaml:"ws_url"`
	RESTBaseURL string `yaml:"rest_base_url"`
}

type IntervalConfig struct {
	DurationSeconds int64         `yaml:"duration_seconds"`
	PrepareLead     time.Duration `yaml:"prepare_lead"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
}

type EdgeConfig struct {
	MinEdgeNet           float64 `yaml:"min_edge_net"`
	SlippageBufferPerLeg float64 `yaml:"slippage_buffer_per_leg"`
	BookDepthFraction    float64 `yaml:"book_depth_fraction"`
	MaxQtyPerTrade       int     `yaml:"max_qty_per_trade"`
	StaleQuote           time.Duration `yaml:"stale_quote"`
}

type RiskConfig struct {
	MaxDailyLoss           float64       `yaml:"max_daily_loss"`
	MaxNotional            float64       `yaml:"max_notional"`
	MaxOpenOrdersPerVenue  int           `yaml:"max_open_orders_per_venue"`
	CooldownAfterFailure   time.Duration `yaml:"cooldown_after_failure"`
	EmergencyStop          bool          `yaml:"emergency_stop"`
}

type ExecutorConfig struct {
	MaxLegDelay       time.Duration `yaml:"max_leg_delay"`
	LegAFillTimeout   time.Duration `yaml:"leg_a_fill_timeout"`
	LegBFillTimeout   time.Duration `yaml:"leg_b_fill_timeout"`
	MaxUnhedgedTime   time.Duration `yaml:"max_unhedged_time"`
	UnwindTimeout     time.Duration `yaml:"unwind_timeout"`
}

type ReconcilerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	ToleranceContracts int          `yaml:"tolerance_contracts"`
}

type PaperConfig struct {
	InitialBalanceUSDC float64 `yaml:"initial_balance_usdc"`
	FeeBps             float64 `yaml:"fee_bps"`
	SlippageBps        float64 `yaml:"slippage_bps"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func Default() Config {
	return Config{
		DryRun:      true,
		TradingMode: "paper",
		LogLevel:    "info",
		LogDir:      "./logs",
		VenueA: VenueConfig{
			Name:               "venue-a",
			TakerFeeBps:        0,
			MinOrderSize:       1,
			MaxOpenOrders:      2,
			PriceFloor:         0.01,
			PriceCeil:          0.99,
			PublishesBothSides: true,
		},
		VenueB: VenueConfig{
			Name:               "venue-b",
			TakerFeeBps:        0,
			MinOrderSize:       1,
			MaxOpenOrders:      2,
			PriceFloor:         0.01,
			PriceCeil:          0.99,
			PublishesBothSides: false,
		},
		Interval: IntervalConfig{
			DurationSeconds: 900,
			PrepareLead:     60 * time.Second,
			SettleDelay:     5 * time.Second,
		},
		Edge: EdgeConfig{
			MinEdgeNet:           0.04,
			SlippageBufferPerLeg: 0.005,
			BookDepthFraction:    0.8,
			MaxQtyPerTrade:       1,
			StaleQuote:           2000 * time.Millisecond,
		},
		Risk: RiskConfig{
			MaxDailyLoss:          0.50,
			MaxNotional:           10.00,
			MaxOpenOrdersPerVenue: 2,
			CooldownAfterFailure:  3000 * time.Millisecond,
		},
		Executor: ExecutorConfig{
			MaxLegDelay:     500 * time.Millisecond,
			LegAFillTimeout: 500 * time.Millisecond,
			LegBFillTimeout: 500 * time.Millisecond,
			MaxUnhedgedTime: 1500 * time.Millisecond,
			UnwindTimeout:   2000 * time.Millisecond,
		},
		Reconciler: ReconcilerConfig{
			Interval:           10000 * time.Millisecond,
			ToleranceContracts: 1,
		},
		Paper: PaperConfig{
			InitialBalanceUSDC: 1000,
			FeeBps:             10,
			SlippageBps:        10,
		},
		API: APIConfig{
			Addr: ":8080",
		},
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides operational toggles (not secrets — venue credentials
// are the adapter's concern) from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BOXARB_DRY_RUN"); v != "" {
		c.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("BOXARB_TRADING_MODE")); v != "" {
		c.TradingMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("BOXARB_LOG_DIR")); v != "" {
		c.LogDir = v
	}
	if v := os.Getenv("BOXARB_RISK_EMERGENCY_STOP"); v != "" {
		c.Risk.EmergencyStop = strings.EqualFold(v, "true") || v == "1"
	}
}
