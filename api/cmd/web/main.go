package main

import (
	"context"
	"net/http"
	"os"

	"github.com/apex/log"
	"github.com/joho/godotenv"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/config"
	"image-reader/api/internal/logging"
	"image-reader/api/internal/relevance"
	"image-reader/api/internal/vision/gemini"
	"image-reader/api/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info(".env not found, using process environment")
	}

	// без ключа не стартуем
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	logger, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("logging")
	}

	engine, err := gemini.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.WithError(err).Fatal("gemini")
	}
	defer engine.Close()

	filter := relevance.New(cfg.Denylist...)
	svc := analyze.New(filter, engine, logger)
	h := web.New(svc, web.Options{MaxUploadBytes: cfg.MaxUploadBytes, MaxPixels: cfg.MaxPixels}, logger)

	addr := ":" + cfg.Port
	logger.WithFields(log.Fields{
		"addr":     addr,
		"model":    engine.GetModel(),
		"denylist": len(filter.Terms()),
	}).Info("image-reader listening")
	if err := http.ListenAndServe(addr, h.Routes()); err != nil {
		logger.WithError(err).Fatal("http server")
	}
}
