package kalshi

// ---------------------------------------------------------------------------
// Kalshi API DTOs. Every payload crossing the wire has an explicit schema so
// malformed upstream data fails at the client boundary instead of propagating
// downstream.
// ---------------------------------------------------------------------------

// Market represents a market as returned by the Kalshi REST API. Prices are
// integer cents on the 0-100 scale.
type Market struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"` // "open", "closed", "settled"
	YesBid      int64  `json:"yes_bid"`
	YesAsk      int64  `json:"yes_ask"`
	NoBid       int64  `json:"no_bid"`
	NoAsk       int64  `json:"no_ask"`
	LastPrice   int64  `json:"last_price"`
	Volume      int64  `json:"volume"`
	OpenTime    string `json:"open_time"`
	CloseTime   string `json:"close_time"` // ISO-8601, "Z" suffix accepted
	Result      string `json:"result"`     // "yes", "no", "" (unsettled)
}

// MarketsPage is one page of the paginated market listing. An empty Cursor
// means there are no further pages.
type MarketsPage struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// Orderbook represents the resting bids on both sides of a market.
type Orderbook struct {
	Yes []PriceLevel `json:"yes"`
	No  []PriceLevel `json:"no"`
}

// PriceLevel is a single price+quantity entry in the orderbook.
type PriceLevel struct {
	Price    int64 `json:"price"`    // cents (1-99)
	Quantity int64 `json:"quantity"` // contracts
}

// MarketPosition is an open portfolio position as reported by the exchange.
type MarketPosition struct {
	Ticker      string `json:"ticker"`
	Position    int64  `json:"position"`     // signed contract count
	TotalTraded int64  `json:"total_traded"` // cents traded in the market
	RestingOrders int64 `json:"resting_orders_count"`
}

// OrderRequest describes a buy limit order to submit. Exactly one of the
// yes/no price fields is set on the wire depending on Side.
type OrderRequest struct {
	Ticker        string
	Side          string // "yes" or "no"
	Count         int64
	Price         int64 // cents, 1-99
	ClientOrderID string
}

// orderPayload is the wire form of an order creation request.
type orderPayload struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"` // always "buy"
	Side          string `json:"side"`
	Count         int64  `json:"count"`
	Type          string `json:"type"` // always "limit"
	ClientOrderID string `json:"client_order_id"`
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
}

// Order is the broker's view of a submitted order.
type Order struct {
	OrderID        string `json:"order_id"`
	Ticker         string `json:"ticker"`
	Status         string `json:"status"` // "resting", "canceled", "executed", "pending"
	Action         string `json:"action"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	YesPrice       int64  `json:"yes_price"`
	NoPrice        int64  `json:"no_price"`
	RemainingCount int64  `json:"remaining_count"`
	PlacedTime     string `json:"placed_time"`
}

// Fill is one execution record from the fill history.
type Fill struct {
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Action      string `json:"action"`
	Count       int64  `json:"count"`
	YesPrice    int64  `json:"yes_price"`
	NoPrice     int64  `json:"no_price"`
	CreatedTime string `json:"created_time"`
}

// Settlement is the final payout record for a closed market. Revenue is the
// cents credited back for the position; zero revenue means the position lost.
type Settlement struct {
	MarketTicker string `json:"market_ticker"`
	MarketResult string `json:"market_result"`
	Revenue      int64  `json:"revenue"`
	SettledTime  string `json:"settled_time"`
}

// errorResponse is the Kalshi API error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
