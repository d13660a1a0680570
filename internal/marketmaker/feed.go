package marketmaker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/helix/pkg/httputil"
)

// PriceFeed supplies an external reference price for a trading pair
type PriceFeed interface {
	LastPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// BinanceFeed reads spot ticker prices from the Binance public API
type BinanceFeed struct {
	client  *httputil.Client
	baseURL string
}

func NewBinanceFeed(client *httputil.Client, baseURL string) *BinanceFeed {
	return &BinanceFeed{client: client, baseURL: baseURL}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// LastPrice fetches the latest traded price for a pair such as "BTCUSDT"
func (f *BinanceFeed) LastPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", f.baseURL, pair)

	var resp tickerResponse
	if err := f.client.GetJSON(ctx, url, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch ticker for %s: %w", pair, err)
	}

	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ticker price %q for %s: %w", resp.Price, pair, err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("non-positive ticker price for %s", pair)
	}
	return price, nil
}
