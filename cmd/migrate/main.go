package main

import (
	"errors"
	"os"
	"time"

	"main/internal/config"
	"main/internal/infrastructure/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	seedMarketMakerEmail = "bank@exchange.local"
	seedInstrumentName   = "GOLD"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}
	logger.Info("schema migrated")

	if err := seed(db, logger); err != nil {
		logger.Fatalf("seed failed: %v", err)
	}
	logger.Info("seed complete")
}

// seed provisions the market maker account and a first instrument so a
// fresh deployment can trade immediately. Existing rows are left alone.
func seed(db *gorm.DB, logger *logrus.Logger) error {
	now := time.Now().UTC()

	var maker models.User
	err := db.Where("email = ?", seedMarketMakerEmail).First(&maker).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		password := os.Getenv("MARKET_MAKER_PASSWORD")
		if password == "" {
			password = uuid.NewString()
			logger.WithField("password", password).Warn("MARKET_MAKER_PASSWORD not set, generated one")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		maker = models.User{
			UID:          uuid.New(),
			Email:        seedMarketMakerEmail,
			PasswordHash: string(hash),
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := db.Create(&maker).Error; err != nil {
			return err
		}
		logger.WithField("uid", maker.UID).Info("market maker account created")
	case err != nil:
		return err
	}

	var instrument models.Instrument
	err = db.Where("name = ?", seedInstrumentName).First(&instrument).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		instrument = models.Instrument{
			UID:       uuid.New(),
			Name:      seedInstrumentName,
			Status:    "active",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(&instrument).Error; err != nil {
			return err
		}
		logger.WithField("uid", instrument.UID).Info("instrument created")
	case err != nil:
		return err
	}

	cash := models.CashBalance{UserUID: maker.UID, CreatedAt: now, UpdatedAt: now}
	if err := db.Where("user_uid = ?", maker.UID).FirstOrCreate(&cash).Error; err != nil {
		return err
	}
	quantity := models.QuantityBalance{
		UserUID:       maker.UID,
		InstrumentUID: instrument.UID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return db.Where("user_uid = ? AND instrument_uid = ?", maker.UID, instrument.UID).
		FirstOrCreate(&quantity).Error
}
