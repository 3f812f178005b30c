package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aristath/marketedge/internal/domain"
	"github.com/aristath/marketedge/internal/money"
	"github.com/aristath/marketedge/internal/ratelimit"
	"github.com/aristath/marketedge/internal/wire"
)

func clampLimit(requested, cap int) int {
	if requested <= 0 || requested > cap {
		return cap
	}
	return requested
}

// GetMarkets implements cursor-paginated market discovery. When filter.MaxPages
// is set and the server still returns a non-empty cursor at that bound, a
// structured warning carrying the last cursor is appended to the final page.
func (c *Client) GetMarkets(ctx context.Context, filter domain.MarketFilter) (domain.MarketPage, error) {
	var allMarkets []domain.Market
	var warnings []string
	cursor := filter.Cursor
	pages := 0

	for {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(clampLimit(filter.Limit, maxMarketsPageSize)))
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, len(filter.Status))
			for i, s := range filter.Status {
				statuses[i] = string(s)
			}
			q.Set("status", strings.Join(statuses, ","))
		}
		if len(filter.Tickers) > 0 {
			q.Set("tickers", strings.Join(filter.Tickers, ","))
		}
		if filter.EventTicker != "" {
			q.Set("event_ticker", filter.EventTicker)
		}
		if filter.SeriesTicker != "" {
			q.Set("series_ticker", filter.SeriesTicker)
		}
		if filter.MinCloseTS != 0 {
			q.Set("min_close_ts", strconv.FormatInt(filter.MinCloseTS, 10))
		}
		if filter.MaxCloseTS != 0 {
			q.Set("max_close_ts", strconv.FormatInt(filter.MaxCloseTS, 10))
		}
		if filter.Multivariate != "" {
			q.Set("multivariate", string(filter.Multivariate))
		}

		body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/markets", q, nil, false, ratelimit.CostNormal)
		if err != nil {
			return domain.MarketPage{}, err
		}

		var env struct {
			Markets json.RawMessage `json:"markets"`
			Cursor  string          `json:"cursor"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return domain.MarketPage{}, fmt.Errorf("httpclient: decode markets page: %w", err)
		}

		markets, marketWarnings, err := wire.DecodeMarkets(env.Markets)
		if err != nil {
			return domain.MarketPage{}, err
		}
		allMarkets = append(allMarkets, markets...)
		for _, w := range marketWarnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", w.Ticker, w.Message))
		}

		pages++
		cursor = env.Cursor
		if cursor == "" {
			break
		}
		if filter.MaxPages > 0 && pages >= filter.MaxPages {
			warnings = append(warnings, fmt.Sprintf("max_pages=%d reached, last_cursor=%s", filter.MaxPages, cursor))
			break
		}
	}

	return domain.MarketPage{Markets: allMarkets, NextCursor: cursor, Warnings: warnings}, nil
}

// GetOrderbook fetches the current bid-only orderbook for one ticker.
// depth=0 requests all levels.
func (c *Client) GetOrderbook(ctx context.Context, ticker string, depth int) (domain.OrderbookSnapshot, error) {
	q := url.Values{}
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}
	path := fmt.Sprintf("/trade-api/v2/markets/%s/orderbook", ticker)
	body, err := c.doRequest(ctx, http.MethodGet, path, q, nil, false, ratelimit.CostNormal)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}
	return wire.DecodeOrderbook(body)
}

// GetMarketsCandlesticks fetches an OHLC series for one ticker.
func (c *Client) GetMarketsCandlesticks(ctx context.Context, ticker, interval string, start, end int64) ([]domain.Candlestick, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("start_ts", strconv.FormatInt(start, 10))
	q.Set("end_ts", strconv.FormatInt(end, 10))
	q.Set("limit", strconv.Itoa(maxCandlesticksPageSize))
	path := fmt.Sprintf("/trade-api/v2/markets/%s/candlesticks", ticker)
	body, err := c.doRequest(ctx, http.MethodGet, path, q, nil, false, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Candlesticks []domain.Candlestick `json:"candlesticks"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode candlesticks: %w", err)
	}
	return env.Candlesticks, nil
}

// GetSettlements lists settlements, authenticated (attributed to the caller's
// positions history).
func (c *Client) GetSettlements(ctx context.Context, filter domain.SettlementFilter) ([]domain.Settlement, error) {
	q := url.Values{}
	if len(filter.Tickers) > 0 {
		q.Set("tickers", strings.Join(filter.Tickers, ","))
	}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	q.Set("limit", strconv.Itoa(clampLimit(filter.Limit, maxFillsPageSize)))

	body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/portfolio/settlements", q, nil, true, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Settlements []json.RawMessage `json:"settlements"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode settlements: %w", err)
	}
	out := make([]domain.Settlement, 0, len(env.Settlements))
	for _, raw := range env.Settlements {
		s, err := wire.DecodeSettlement(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// GetFills lists fills attributed to the authenticated account.
func (c *Client) GetFills(ctx context.Context, filter domain.FillFilter) ([]domain.Fill, error) {
	q := url.Values{}
	if len(filter.Tickers) > 0 {
		q.Set("tickers", strings.Join(filter.Tickers, ","))
	}
	if filter.MinTradeTS != 0 {
		q.Set("min_ts", strconv.FormatInt(filter.MinTradeTS, 10))
	}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	q.Set("limit", strconv.Itoa(clampLimit(filter.Limit, maxFillsPageSize)))

	body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/portfolio/fills", q, nil, true, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Fills json.RawMessage `json:"fills"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode fills: %w", err)
	}
	return wire.DecodeFills(env.Fills)
}

// GetPositions fetches the authenticated account's current positions
// (server-reported; the local portfolio reconciler recomputes independently).
func (c *Client) GetPositions(ctx context.Context) ([]domain.Position, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/portfolio/positions", nil, nil, true, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Positions json.RawMessage `json:"positions"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode positions: %w", err)
	}
	return wire.DecodePositions(env.Positions)
}

// GetBalance returns the account cash balance in money.Amount units.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/portfolio/balance", nil, nil, true, ratelimit.CostNormal)
	if err != nil {
		return 0, err
	}
	var env struct {
		BalanceCents int64 `json:"balance"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return 0, fmt.Errorf("httpclient: decode balance: %w", err)
	}
	return int64(money.FromCents(env.BalanceCents)), nil
}

// GetOrders lists resting/historical orders for the authenticated account.
func (c *Client) GetOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	q := url.Values{}
	if len(filter.Tickers) > 0 {
		q.Set("tickers", strings.Join(filter.Tickers, ","))
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/portfolio/orders", q, nil, true, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode orders: %w", err)
	}
	return env.Orders, nil
}

// CreateOrder validates and submits an order spec. When dryRun is true the
// request is never sent; a synthesized response with order_id="DRY_RUN" is
// returned instead.
func (c *Client) CreateOrder(ctx context.Context, spec domain.OrderSpec, dryRun bool) (domain.Order, error) {
	if spec.PriceCents < 1 || spec.PriceCents > 99 {
		return domain.Order{}, &domain.ValidationError{Field: "price", Message: fmt.Sprintf("price must satisfy 1 <= price <= 99 cents, got %d", spec.PriceCents)}
	}

	if dryRun {
		return domain.Order{OrderID: "DRY_RUN", Spec: spec, Status: "dry_run"}, nil
	}

	payload, err := json.Marshal(spec)
	if err != nil {
		return domain.Order{}, fmt.Errorf("httpclient: marshal order spec: %w", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/trade-api/v2/portfolio/orders", nil, payload, true, ratelimit.CostNormal)
	if err != nil {
		return domain.Order{}, err
	}
	var order domain.Order
	if err := json.Unmarshal(body, &order); err != nil {
		return domain.Order{}, fmt.Errorf("httpclient: decode order response: %w", err)
	}
	return order, nil
}

// GetMultivariateEventCollections discovers multivariate event collections,
// which must be fetched via this separate discovery path rather than the
// normal markets listing.
func (c *Client) GetMultivariateEventCollections(ctx context.Context, filter domain.MultivariateFilter) ([]domain.Event, error) {
	q := url.Values{}
	if filter.SeriesTicker != "" {
		q.Set("series_ticker", filter.SeriesTicker)
	}
	if filter.Cursor != "" {
		q.Set("cursor", filter.Cursor)
	}
	q.Set("limit", strconv.Itoa(clampLimit(filter.Limit, maxEventsPageSize)))

	body, err := c.doRequest(ctx, http.MethodGet, "/trade-api/v2/multivariate_event_collections", q, nil, false, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Collections []domain.Event `json:"multivariate_event_collections"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode multivariate collections: %w", err)
	}
	return env.Collections, nil
}

// LookupMultivariateTickers resolves a collection + selected-markets map to
// the concrete combination tickers tradable within it.
func (c *Client) LookupMultivariateTickers(ctx context.Context, collectionTicker string, selectedMarkets map[string]string) ([]string, error) {
	payload, err := json.Marshal(struct {
		SelectedMarkets map[string]string `json:"selected_markets"`
	}{SelectedMarkets: selectedMarkets})
	if err != nil {
		return nil, fmt.Errorf("httpclient: marshal lookup request: %w", err)
	}
	path := fmt.Sprintf("/trade-api/v2/multivariate_event_collections/%s/lookup", collectionTicker)
	body, err := c.doRequest(ctx, http.MethodPost, path, nil, payload, false, ratelimit.CostNormal)
	if err != nil {
		return nil, err
	}
	var env struct {
		Tickers []string `json:"tickers"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("httpclient: decode lookup response: %w", err)
	}
	return env.Tickers, nil
}
