package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/helix")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, "development", cfg.Env)

	assert.False(t, cfg.Exchange.MarginEnabled)
	assert.True(t, cfg.Exchange.MarketBuyBuffer.Equal(decimal.RequireFromString("1.05")))
	assert.Equal(t, 10, cfg.Exchange.DepthLimit)
	assert.Equal(t, 1, cfg.Exchange.BotMemberID)
	assert.Equal(t, 5*time.Second, cfg.Exchange.BotInterval)

	assert.Equal(t, "https://api.binance.com", cfg.Feed.BaseURL)
	assert.Equal(t, 5, cfg.Feed.RateLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/helix")
	t.Setenv("MARGIN_ENABLED", "true")
	t.Setenv("MARKET_BUY_BUFFER", "1.10")
	t.Setenv("DEPTH_LIMIT", "25")
	t.Setenv("BOT_INTERVAL", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Exchange.MarginEnabled)
	assert.True(t, cfg.Exchange.MarketBuyBuffer.Equal(decimal.RequireFromString("1.10")))
	assert.Equal(t, 25, cfg.Exchange.DepthLimit)
	assert.Equal(t, time.Second, cfg.Exchange.BotInterval)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Env: "development",
			Database: DatabaseConfig{
				URL: "postgres://localhost:5432/helix",
			},
			Exchange: ExchangeConfig{
				MarketBuyBuffer: decimal.RequireFromString("1.05"),
				BotMemberID:     1,
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("unknown env", func(t *testing.T) {
		cfg := base()
		cfg.Env = "qa"
		assert.Error(t, cfg.validate())
	})

	t.Run("buffer below one", func(t *testing.T) {
		cfg := base()
		cfg.Exchange.MarketBuyBuffer = decimal.RequireFromString("0.9")
		assert.Error(t, cfg.validate())
	})

	t.Run("bot member id", func(t *testing.T) {
		cfg := base()
		cfg.Exchange.BotMemberID = 0
		assert.Error(t, cfg.validate())
	})
}
