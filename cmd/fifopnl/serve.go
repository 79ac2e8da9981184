package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"go.uber.org/zap"

	cronrunner "fifopnl/internal/cron"
	"fifopnl/internal/handler"
)

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the operator HTTP API and scheduled jobs" }
func (*serveCmd) Usage() string {
	return `fifopnl serve

  Serves the read-only operator API (allocations, computation log, validation,
  health report, manual review queue) and, when cron.enabled is set, the
  scheduled recompute of the active version.
`
}

func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rt, err := bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer rt.Close()
	log := rt.Logger

	if strings.EqualFold(rt.Config.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: rt.DB.Gorm}
	healthHandler.Register(router)
	allocHandler := &handler.AllocationHandler{Repo: rt.Store}
	allocHandler.Register(router)
	compHandler := &handler.ComputationHandler{Repo: rt.Store}
	compHandler.Register(router)
	validationHandler := &handler.ValidationHandler{Validator: rt.Validator}
	validationHandler.Register(router)
	reviewHandler := &handler.ReviewHandler{Repo: rt.Store}
	reviewHandler.Register(router)

	srv := &http.Server{
		Addr:    rt.Config.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if rt.Config.Cron.Enabled {
		runner := cronrunner.New(log, ctx)
		version := rt.Config.Compute.ActiveVersion
		triggeredBy := rt.Config.Compute.TriggeredBy
		validateAfter := rt.Config.Cron.ValidateAfter
		_, err := runner.Add("recompute", rt.Config.Cron.Recompute, func(ctx context.Context) {
			res := rt.Engine.ComputeAllSymbols(ctx, version, triggeredBy)
			if !res.Success {
				log.Warn("scheduled recompute failed",
					zap.Int("version", version),
					zap.String("error", res.ErrorMessage),
				)
				return
			}
			if !validateAfter {
				return
			}
			vres, err := rt.Validator.ValidateVersion(ctx, version, false)
			if err != nil {
				log.Warn("post-recompute validation failed", zap.Error(err))
				return
			}
			if !vres.Valid {
				log.Warn("scheduled recompute produced invalid version",
					zap.Int("version", version),
					zap.Strings("errors", vres.Errors),
				)
			}
		})
		if err != nil {
			log.Warn("cron register recompute failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	return subcommands.ExitSuccess
}
