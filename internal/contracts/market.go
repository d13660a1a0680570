package contracts

// Coin is a currency known to the exchange
type Coin struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// Symbol is a tradable pair, e.g. BTCUSDT = base BTC quoted in USDT
type Symbol struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BaseCoinID  string `json:"base_coin_id"`
	QuoteCoinID string `json:"quote_coin_id"`
}
