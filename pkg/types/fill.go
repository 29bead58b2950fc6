package types

// UserMessage represents a message from the authenticated "user" WebSocket
// channel: acknowledgements and fills for the bot's own orders. Distinguished
// from OrderbookMessage by the presence of order_id — the feed multiplexes
// both channels over the same connection.
type UserMessage struct {
	EventType string `json:"event_type"` // "order" or "trade"
	OrderID   string `json:"order_id"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Side      string `json:"side"`   // "BUY" or "SELL"
	Price     string `json:"price"`
	Size      string `json:"size"`   // matched size for this event
	Outcome   string `json:"outcome"`
	Status    string `json:"status"` // "MATCHED", "CANCELLED", ...
	Maker     bool   `json:"maker"`
	Timestamp string `json:"timestamp"`
}
