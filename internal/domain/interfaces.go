package domain

import (
	"context"
	"time"
)

// MarketAPI is the narrow collaborator interface the Orchestrator, the
// ingestion scheduler, and the scanner depend on instead of a concrete
// HTTP client type. It matches the §4.A operation set and lets tests
// substitute a fake without importing internal/httpclient.
type MarketAPI interface {
	GetMarkets(ctx context.Context, filter MarketFilter) (MarketPage, error)
	GetOrderbook(ctx context.Context, ticker string, depth int) (OrderbookSnapshot, error)
	GetMarketsCandlesticks(ctx context.Context, ticker, interval string, start, end int64) ([]Candlestick, error)
	GetSettlements(ctx context.Context, filter SettlementFilter) ([]Settlement, error)
	GetFills(ctx context.Context, filter FillFilter) ([]Fill, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetBalance(ctx context.Context) (int64, error)
	GetOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	CreateOrder(ctx context.Context, spec OrderSpec, dryRun bool) (Order, error)
	GetMultivariateEventCollections(ctx context.Context, filter MultivariateFilter) ([]Event, error)
	LookupMultivariateTickers(ctx context.Context, collectionTicker string, selectedMarkets map[string]string) ([]string, error)
}

// MarketFilter mirrors the recognized options for GetMarkets (§4.A).
type MarketFilter struct {
	Status            []MarketStatus
	Tickers           []string
	EventTicker       string
	SeriesTicker      string
	MinCloseTS        int64
	MaxCloseTS        int64
	Multivariate      MultivariateMode
	Cursor            string
	Limit             int
	MaxPages          int
}

// MultivariateMode enumerates the three ways a listing request can
// include multivariate event markets.
type MultivariateMode string

const (
	MultivariateInclude MultivariateMode = "include"
	MultivariateOnly    MultivariateMode = "only"
	MultivariateExclude MultivariateMode = "exclude"
)

type MultivariateFilter struct {
	SeriesTicker string
	Cursor       string
	Limit        int
}

// MarketPage is one cursor-paginated page of markets, plus the cursor to
// request the next page (empty when exhausted).
type MarketPage struct {
	Markets    []Market
	NextCursor string
	Warnings   []string
}

// Candlestick is one OHLC bucket returned by GetMarketsCandlesticks.
type Candlestick struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

type SettlementFilter struct {
	Tickers []string
	Cursor  string
	Limit   int
}

type FillFilter struct {
	Tickers    []string
	MinTradeTS int64
	Cursor     string
	Limit      int
}

type OrderFilter struct {
	Tickers []string
	Status  string
	Cursor  string
	Limit   int
}

// OrderSpec is the validated request shape for CreateOrder. PriceCents
// must satisfy 1 <= price <= 99 per §4.A.
type OrderSpec struct {
	Ticker     string `json:"ticker"`
	Side       Side   `json:"side"`
	Action     Action `json:"action"`
	Count      int64  `json:"count"`
	PriceCents int64  `json:"price"`
}

// Order is the server's (or dry-run synthesized) response to CreateOrder.
type Order struct {
	OrderID string    `json:"order_id"`
	Spec    OrderSpec `json:"spec"`
	Status  string    `json:"status"`
}

// ResearchProvider is the §4.I narrow capability contract. Every operation
// returns a cost in dollars that the Orchestrator sums against its budget.
type ResearchProvider interface {
	Search(ctx context.Context, query string, opts SearchOptions) (SearchResult, error)
	GetContents(ctx context.Context, urls []string, opts ContentOptions) (ContentResult, error)
	FindSimilar(ctx context.Context, url string, opts SearchOptions) (SearchResult, error)
	Answer(ctx context.Context, question string, opts SearchOptions) (AnswerResult, error)
	StartResearchTask(ctx context.Context, instructions, model string, outputSchema []byte) (string, error)
	PollResearchTask(ctx context.Context, taskID string) (ResearchTaskStatus, error)
}

type SearchOptions struct {
	NumResults     int
	Type           string // auto | neural | fast | deep
	Category       string
	StartDate      string
	EndDate        string
	IncludeDomains []string
	ExcludeDomains []string
	IncludeText    string
	ExcludeText    string
	WantText       bool
	WantHighlights bool
	WantSummary    bool
}

type ContentOptions struct {
	WantText          bool
	WantHighlights    bool
	WantSummary       bool
	Livecrawl         string // never | fallback | preferred | always | auto
	LivecrawlTimeoutMS int
}

type SearchResult struct {
	Results     []SearchHit
	CostDollars float64
}

type SearchHit struct {
	URL       string
	Title     string
	Text      string
	Highlights []string
	Summary   string
}

type ContentResult struct {
	Contents    []SearchHit
	CostDollars float64
}

type AnswerResult struct {
	Answer      string
	Citations   []string
	CostDollars float64
}

type ResearchTaskStatus struct {
	Status      string // pending | running | completed | failed
	Output      []byte
	CostDollars float64
}

// Synthesizer is the §4.J contract. Implementations must produce the
// AnalysisResult schema exactly. The orchestrator calls Synthesize once and
// does not validate the result; synth.RetryingSynthesizer wraps an
// implementation to retry once on validation failure before surfacing
// SynthesizerInvalidOutputError.
type Synthesizer interface {
	Synthesize(ctx context.Context, input SynthesisInput) (AnalysisResult, float64, error)
}

// SynthesisInput assembles everything the synthesizer needs: market
// identity, current price, close time, the selected research bundle, and
// any prior thesis text pinned by the user.
type SynthesisInput struct {
	Ticker          string
	CurrentYesBid   float64
	CurrentYesAsk   float64
	CloseTime       int64
	ResearchFactors []Factor
	Citations       []string
	PriorThesisText string
}

// Notifier is the single-method poll-friendly seam for alert/escalation
// delivery; implementations may be no-op (§6 — no push delivery in scope).
type Notifier interface {
	Notify(ctx context.Context, event NotifyEvent) error
}

// NotifyEvent is the payload handed to Notifier.Notify.
type NotifyEvent struct {
	Kind    string
	Ticker  string
	Message string
}

// Clock abstracts wall-clock access so the ingestion scheduler's tick
// timing can be deterministically tested.
type Clock interface {
	Now() time.Time
}
