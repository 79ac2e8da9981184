package main

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fifopnl/internal/config"
	"fifopnl/internal/db"
	"fifopnl/internal/engine"
	"fifopnl/internal/logger"
	"fifopnl/internal/precision"
	gormrepository "fifopnl/internal/repository/gorm"
	"fifopnl/internal/validator"
)

// runtime holds the wired collaborators every subcommand needs. Everything
// is constructed once here and passed explicitly; no global accessors.
type runtime struct {
	Config    config.Config
	Logger    *zap.Logger
	DB        *db.DB
	Store     *gormrepository.Store
	Precision precision.Provider
	Engine    *engine.Engine
	Validator *validator.Validator
}

func bootstrap() (*runtime, error) {
	cfgPath := os.Getenv("FIFO_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("FIFO_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}

	store := gormrepository.New(dbConn.Gorm)

	fallback := precision.NewStatic()
	if dust, err := decimal.NewFromString(cfg.Precision.DefaultDust); err == nil {
		fallback = precision.NewStaticWith(dust, cfg.Precision.DefaultDecimals)
	}
	var provider precision.Provider = fallback
	if cfg.Precision.UseTable {
		provider = precision.NewTable(store, fallback)
	}

	rt := &runtime{
		Config:    cfg,
		Logger:    log,
		DB:        dbConn,
		Store:     store,
		Precision: provider,
		Engine: &engine.Engine{
			Repo:      store,
			Precision: provider,
			Logger:    log,
			Config:    cfg.Compute,
		},
		Validator: &validator.Validator{
			Repo:      store,
			Precision: provider,
			Logger:    log,
		},
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	if rt.DB != nil {
		_ = db.Close(rt.DB)
	}
	if rt.Logger != nil {
		_ = rt.Logger.Sync()
	}
}
