package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBaseURL    = "http://localhost:8080"
	defaultBankEmail  = "bank@exchange.local"
	defaultDays       = 50
	defaultPlayers    = 3
	defaultMeanMoney  = 100.0
	defaultBankAssets = 800.0
	defaultMeanTarget = 0.15
	defaultYearReturn = 0.15

	runLockKey = "emulation:run_lock"
)

type emulationConfig struct {
	BaseURL       string
	BankEmail     string
	BankPassword  string
	Days          int
	Players       int
	MeanMoney     float64
	BankAssets    float64
	MeanTarget    float64
	YearReturn    float64
	InstrumentUID uuid.UUID
	RedisAddr     string
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := loadEmulationConfig()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runUID := uuid.New()
	log := logger.WithField("run_uid", runUID)

	// One emulation at a time. The lock outlives a crashed run via TTL
	// rather than explicit cleanup.
	if cfg.RedisAddr != "" {
		locker := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer locker.Close()
		acquired, err := locker.SetNX(ctx, runLockKey, runUID.String(), time.Hour).Result()
		if err != nil {
			log.Fatalf("redis lock error: %v", err)
		}
		if !acquired {
			log.Fatal("another emulation run holds the lock")
		}
		defer locker.Del(context.Background(), runLockKey)
	}

	if err := run(ctx, cfg, runUID, log); err != nil {
		log.Fatalf("emulation failed: %v", err)
	}
	log.Info("emulation finished")
}

func run(ctx context.Context, cfg *emulationConfig, runUID uuid.UUID, log *logrus.Entry) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client := newAPIClient(cfg.BaseURL)

	mm := newBank(cfg.BankEmail, cfg.BankAssets)
	token, err := client.Token(ctx, mm.email, cfg.BankPassword)
	if err != nil {
		return fmt.Errorf("bank auth: %w", err)
	}
	mm.token = token

	instrumentUID, err := resolveInstrument(ctx, client, mm, cfg.InstrumentUID)
	if err != nil {
		return fmt.Errorf("resolve instrument: %w", err)
	}
	log.WithField("instrument", instrumentUID).Info("emulation starting")

	traders := make([]*trader, 0, cfg.Players)
	for i := 0; i < cfg.Players; i++ {
		target := cfg.MeanTarget * float64(cfg.Days) / 365
		// Lognormal jitter keeps individual targets positive while
		// spreading them around the mean.
		target = math.Floor(math.Exp(rng.NormFloat64()*0.1*target+math.Log(target))*1e4) / 1e4
		money := math.Floor((0.6+0.8*rng.Float64())*cfg.MeanMoney*1e4) / 1e4

		t := newTrader(fmt.Sprintf("bot%d@exchange.local", i), target, money)
		if t.token, err = client.Token(ctx, t.email, traderPassword); err != nil {
			return fmt.Errorf("trader %s auth: %w", t.email, err)
		}
		if err := t.seedBalances(ctx, client, instrumentUID); err != nil {
			return fmt.Errorf("trader %s seed: %w", t.email, err)
		}
		traders = append(traders, t)
	}
	if err := mm.seedBalances(ctx, client, instrumentUID); err != nil {
		return fmt.Errorf("bank seed: %w", err)
	}

	for day := 0; day < cfg.Days; day++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		dayLog := log.WithField("day", day)

		// Unfilled orders expire at the end of each simulated day.
		if err := client.CancelOrders(ctx, mm.token); err != nil {
			return err
		}
		for _, t := range traders {
			if err := client.CancelOrders(ctx, t.token); err != nil {
				return err
			}
		}

		curReturn := float64(cfg.Days) / 365 * (cfg.YearReturn - cfg.YearReturn/float64(cfg.Days)*float64(day))

		if mm.curAssets > 0 {
			if err := mm.placeOrder(ctx, client, instrumentUID, 1.1*curReturn); err != nil {
				dayLog.WithError(err).Warn("bank order rejected")
			}
		}

		for _, ind := range rng.Perm(len(traders)) {
			if err := traders[ind].act(ctx, client, rng, curReturn, instrumentUID); err != nil {
				dayLog.WithError(err).WithField("trader", traders[ind].email).Warn("order rejected")
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, t := range traders {
			t := t
			g.Go(func() error {
				return t.syncBalances(gctx, client, instrumentUID)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := mm.syncBalances(ctx, client, instrumentUID); err != nil {
			return err
		}

		var money, assets float64
		for _, t := range traders {
			money += t.curMoney
			assets += t.curAssets
		}
		dayLog.WithFields(logrus.Fields{
			"bank_money":  mm.curMoney,
			"bank_assets": mm.curAssets,
			"money":       money + mm.curMoney,
			"assets":      assets + mm.curAssets,
		}).Info("day settled")

		if err := client.WriteStats(ctx, mm.token, instrumentUID, runUID); err != nil {
			dayLog.WithError(err).Warn("stats snapshot failed")
		}
	}
	return nil
}

// resolveInstrument uses the configured instrument when the bank holds a
// balance on it, otherwise registers a fresh one for this run.
func resolveInstrument(ctx context.Context, client *apiClient, mm *bank, configured uuid.UUID) (uuid.UUID, error) {
	if configured != uuid.Nil {
		if _, err := client.GetQuantityBalance(ctx, mm.token, configured); err == nil {
			return configured, nil
		}
	}
	name := "emulation " + time.Now().UTC().Format(time.RFC3339)
	return client.CreateInstrument(ctx, mm.token, name)
}

func loadEmulationConfig() (*emulationConfig, error) {
	cfg := &emulationConfig{
		BaseURL:      envString("EMULATION_URL", defaultBaseURL),
		BankEmail:    envString("BANK_EMAIL", defaultBankEmail),
		BankPassword: os.Getenv("BANK_PASSWORD"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
	}
	if cfg.BankPassword == "" {
		return nil, fmt.Errorf("BANK_PASSWORD is required")
	}

	var err error
	if cfg.Days, err = envInt("EMULATION_DAYS", defaultDays); err != nil {
		return nil, err
	}
	if cfg.Players, err = envInt("EMULATION_PLAYERS", defaultPlayers); err != nil {
		return nil, err
	}
	if cfg.MeanMoney, err = envFloat("EMULATION_MEAN_MONEY", defaultMeanMoney); err != nil {
		return nil, err
	}
	if cfg.BankAssets, err = envFloat("EMULATION_BANK_ASSETS", defaultBankAssets); err != nil {
		return nil, err
	}
	if cfg.MeanTarget, err = envFloat("EMULATION_MEAN_TARGET_RETURN", defaultMeanTarget); err != nil {
		return nil, err
	}
	if cfg.YearReturn, err = envFloat("EMULATION_YEAR_RETURN", defaultYearReturn); err != nil {
		return nil, err
	}
	if cfg.Days <= 0 || cfg.Players <= 0 {
		return nil, fmt.Errorf("EMULATION_DAYS and EMULATION_PLAYERS must be positive")
	}

	if raw := os.Getenv("EMULATION_INSTRUMENT_UID"); raw != "" {
		if cfg.InstrumentUID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("parse EMULATION_INSTRUMENT_UID: %w", err)
		}
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}
