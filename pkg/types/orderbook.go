package types

import (
	"encoding/json"
	"strconv"
)

// OrderbookMessage represents a message from the Polymarket WebSocket.
type OrderbookMessage struct {
	EventType string        `json:"event_type"` // "book", "price_change", "trade", "subscribed", "error"
	AssetID   string        `json:"asset_id"`
	Market    string        `json:"market"`
	Timestamp int64         `json:"-"` // Parsed from string via UnmarshalJSON
	Hash      string        `json:"hash,omitempty"`
	Bids      []PriceLevel  `json:"bids,omitempty"`
	Asks      []PriceLevel  `json:"asks,omitempty"`
	Changes   []PriceChange `json:"changes,omitempty"`
	Message   string        `json:"message,omitempty"` // populated on "error" messages
}

// PriceChange is a single level delta carried by a "price_change" message.
type PriceChange struct {
	Side  string `json:"side"` // "BUY" (bids) or "SELL" (asks)
	Price string `json:"price"`
	Size  string `json:"size"`
}

// UnmarshalJSON custom unmarshaler to handle string timestamp.
func (o *OrderbookMessage) UnmarshalJSON(data []byte) error {
	type Alias OrderbookMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(o),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	// Parse timestamp from string to int64
	if aux.TimestampStr != "" {
		timestamp, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		o.Timestamp = timestamp
	}

	return nil
}

// PriceLevel represents a single price level in the orderbook.
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}
