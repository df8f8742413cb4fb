package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/novelvideo/internal/api"
	"github.com/yungbote/novelvideo/internal/pipeline/bootstrap"
	"github.com/yungbote/novelvideo/internal/platform/logger"
)

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func main() {
	_ = godotenv.Load()

	logMode := envString("NOVELVIDEO_LOG_MODE", "production")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := bootstrap.LoadEngineConfig()
	runtime, err := bootstrap.Build(cfg, log)
	if err != nil {
		log.Fatal("failed to build pipeline runtime", "error", err.Error())
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runtime.Start(ctx); err != nil {
		log.Fatal("failed to start pipeline runtime", "error", err.Error())
		return
	}

	server := api.NewServer(runtime.Engine, runtime.Bus, log)
	router := server.Router()

	port := envString("PORT", "8080")
	log.Info("novelvideo server listening", "port", port)

	go func() {
		if err := router.Run(":" + port); err != nil {
			log.Warn("server stopped", "error", err.Error())
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
}
