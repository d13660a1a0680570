package contracts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyFill(t *testing.T) {
	o := &Order{
		Quantity: decimal.NewFromInt(2),
		Status:   StatusNew,
	}
	now := time.Now()

	o.ApplyFill(decimal.NewFromInt(100), decimal.NewFromInt(1), now)
	assert.Equal(t, StatusPartiallyFilled, o.Status)
	assert.True(t, o.FilledQuantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, o.CumQuoteQty.Equal(decimal.NewFromInt(100)))
	assert.True(t, o.Remaining().Equal(decimal.NewFromInt(1)))

	o.ApplyFill(decimal.NewFromInt(110), decimal.NewFromInt(1), now)
	assert.Equal(t, StatusFilled, o.Status)
	assert.True(t, o.Remaining().IsZero())
	assert.True(t, o.CumQuoteQty.Equal(decimal.NewFromInt(210)))
	assert.True(t, o.AvgFillPrice().Equal(decimal.NewFromInt(105)))
}

func TestStatusPredicates(t *testing.T) {
	for status, terminal := range map[OrderStatus]bool{
		StatusNew:             false,
		StatusPartiallyFilled: false,
		StatusFilled:          true,
		StatusCanceled:        true,
	} {
		o := &Order{Status: status}
		assert.Equal(t, terminal, o.IsTerminal(), "status %s", status)
		assert.Equal(t, !terminal, o.IsActive(), "status %s", status)
	}
}

func TestOppositeSide(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
}

func TestTimeframeBucket(t *testing.T) {
	at := time.Date(2026, 3, 1, 13, 47, 31, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 1, 13, 47, 0, 0, time.UTC), Timeframe1m.Bucket(at))
	assert.Equal(t, time.Date(2026, 3, 1, 13, 45, 0, 0, time.UTC), Timeframe5m.Bucket(at))
	assert.Equal(t, time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC), Timeframe30m.Bucket(at))
	assert.Equal(t, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), Timeframe1h.Bucket(at))
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Timeframe1d.Bucket(at))
}

func TestParseTimeframeDefaultsTo1m(t *testing.T) {
	assert.Equal(t, Timeframe5m, ParseTimeframe("5m"))
	assert.Equal(t, Timeframe1m, ParseTimeframe(""))
	assert.Equal(t, Timeframe1m, ParseTimeframe("7h"))
}
