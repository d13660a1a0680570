package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/helix/internal/api"
	"github.com/wonny/helix/internal/api/handlers"
	"github.com/wonny/helix/internal/candle"
	"github.com/wonny/helix/internal/contracts"
	"github.com/wonny/helix/internal/marketmaker"
	"github.com/wonny/helix/internal/orderbook"
	"github.com/wonny/helix/internal/position"
	"github.com/wonny/helix/internal/scheduler"
	"github.com/wonny/helix/internal/storage/memory"
	"github.com/wonny/helix/internal/storage/postgres"
	"github.com/wonny/helix/internal/stream"
	"github.com/wonny/helix/internal/trading"
	"github.com/wonny/helix/internal/wallet"
	"github.com/wonny/helix/pkg/config"
	"github.com/wonny/helix/pkg/database"
	"github.com/wonny/helix/pkg/httputil"
	"github.com/wonny/helix/pkg/logger"
	"github.com/wonny/helix/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "거래소 API 서버 시작",
	Long: `매칭 엔진과 REST API 서버를 시작합니다.

이 명령어는:
- 주문 제출/취소/조회 API 제공
- 호가창, 체결 내역, 캔들 조회 제공
- 체결 WebSocket 스트림 제공
- 유동성 봇 구동 (옵션)

Example:
  go run ./cmd/helix api
  go run ./cmd/helix api --port 8080 --ephemeral --bot=false`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiEphemeral bool
	apiBot       bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트")
	apiCmd.Flags().BoolVar(&apiEphemeral, "ephemeral", false, "DB 없이 인메모리 저장소로 실행")
	apiCmd.Flags().BoolVar(&apiBot, "bot", true, "유동성 봇 구동")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Helix API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port":      cfg.Port,
		"env":       cfg.Env,
		"ephemeral": apiEphemeral,
	}).Info("Initializing API server")

	ctx := context.Background()

	// 3. Open storage
	var store contracts.Store
	if apiEphemeral {
		mem := memory.New()
		if err := seedMarkets(ctx, mem); err != nil {
			return fmt.Errorf("seed ephemeral store: %w", err)
		}
		store = mem
		log.Info("Running on in-memory storage")
	} else {
		db, err := database.New(cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		pg := postgres.New(db.Pool, log)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = pg
		log.Info("Connected to database")
	}

	// 4. Connect to Redis (optional)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	var cache *redis.Cache
	var limiter *redis.RateLimiter
	if redisClient.Enabled() {
		cache = redis.NewCache(redisClient, "helix")
		limiter = redis.NewRateLimiter(redisClient, "helix")
	}

	// 5. Trade stream hub and candle aggregator
	hub := stream.NewHub(log)
	aggregator := candle.NewAggregator(store, log)

	candleCtx, stopCandles := context.WithCancel(ctx)
	defer stopCandles()
	candleFeed, cancelFeed := hub.Subscribe()
	defer cancelFeed()
	go aggregator.Run(candleCtx, candleFeed)

	// 6. Core services
	books := orderbook.NewManager()
	trader := trading.NewService(store, books, cache, hub, cfg.Exchange, log)
	if err := trader.RebuildBooks(ctx); err != nil {
		return fmt.Errorf("rebuild order books: %w", err)
	}

	wallets := wallet.NewService(store, log)
	positions := position.NewService(store, wallets, log)

	// 7. Handlers and router
	h := api.Handlers{
		Orders:    handlers.NewOrderHandler(trader, log),
		Market:    handlers.NewMarketHandler(trader, aggregator, log),
		Wallets:   handlers.NewWalletHandler(wallets, log),
		Positions: handlers.NewPositionHandler(positions, log),
		Stream:    handlers.NewStreamHandler(hub, log),
	}
	router := api.NewRouter(h, limiter, log)

	// 8. Create server
	server := api.New(cfg, log, router)

	// 9. Liquidity bot (optional)
	var sched *scheduler.Scheduler
	if apiBot {
		httpClient := httputil.New(log, cfg.Feed.Timeout, cfg.Feed.RateLimit)
		feed := marketmaker.NewBinanceFeed(httpClient, cfg.Feed.BaseURL)
		bot := marketmaker.NewBot(trader, wallets, store, feed, cfg.Exchange, log)

		sched = scheduler.New(log)
		if err := sched.AddJob(marketmaker.NewQuoteJob(bot, cfg.Exchange.BotInterval)); err != nil {
			return fmt.Errorf("schedule bot: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// 10. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
