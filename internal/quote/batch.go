package quote

import "github.com/quietridge/boxmaker/pkg/boxtypes"

const defaultMaxBatchSize = 10

// BatchBuilder accumulates quotes into a single submission batch, grounded
// on quote_generator.py's BatchQuoteBuilder.
type BatchBuilder struct {
	maxSize int
	quotes  []boxtypes.Quote
}

// NewBatchBuilder builds a BatchBuilder with the given cap (defaults to 10
// when zero).
func NewBatchBuilder(maxSize int) *BatchBuilder {
	if maxSize <= 0 {
		maxSize = defaultMaxBatchSize
	}
	return &BatchBuilder{maxSize: maxSize}
}

// Add appends a quote, reporting whether the batch had room.
func (b *BatchBuilder) Add(q boxtypes.Quote) bool {
	if b.IsFull() {
		return false
	}
	b.quotes = append(b.quotes, q)
	return true
}

// Build returns the accumulated quotes.
func (b *BatchBuilder) Build() []boxtypes.Quote {
	return b.quotes
}

// IsFull reports whether the batch has reached its cap.
func (b *BatchBuilder) IsFull() bool {
	return len(b.quotes) >= b.maxSize
}

// IsEmpty reports whether no quotes have been added yet.
func (b *BatchBuilder) IsEmpty() bool {
	return len(b.quotes) == 0
}

// Size returns the number of quotes currently batched.
func (b *BatchBuilder) Size() int {
	return len(b.quotes)
}
