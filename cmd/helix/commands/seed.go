package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/storage/postgres"
	"github.com/wonny/helix/pkg/config"
	"github.com/wonny/helix/pkg/database"
	"github.com/wonny/helix/pkg/logger"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "스키마 생성 및 기본 마켓 데이터 입력",
	Long: `데이터베이스 스키마를 만들고 기본 코인과 심볼을 입력합니다.

Example:
  go run ./cmd/helix seed`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Helix Seed ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	store := postgres.New(db.Pool, log)

	// 4. Create schema
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// 5. Seed coins and symbols
	if err := seedMarkets(ctx, store); err != nil {
		return err
	}

	log.Info("Seed completed")
	fmt.Println("✅ Schema and market data are in place")
	return nil
}

// seedMarkets upserts the default coins and trading pairs
func seedMarkets(ctx context.Context, store contracts.Store) error {
	coins := []*contracts.Coin{
		{ID: "BTC", Name: "Bitcoin", Decimals: 8},
		{ID: "ETH", Name: "Ethereum", Decimals: 8},
		{ID: "USDT", Name: "Tether", Decimals: 2},
	}
	for _, c := range coins {
		if err := store.Markets().UpsertCoin(ctx, c); err != nil {
			return fmt.Errorf("seed coin %s: %w", c.ID, err)
		}
	}

	symbols := []*contracts.Symbol{
		{ID: "BTCUSDT", Name: "BTC/USDT", BaseCoinID: "BTC", QuoteCoinID: "USDT"},
		{ID: "ETHUSDT", Name: "ETH/USDT", BaseCoinID: "ETH", QuoteCoinID: "USDT"},
	}
	for _, s := range symbols {
		if err := store.Markets().UpsertSymbol(ctx, s); err != nil {
			return fmt.Errorf("seed symbol %s: %w", s.ID, err)
		}
	}
	return nil
}
