package main

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/apex/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/config"
	"image-reader/api/internal/logging"
	"image-reader/api/internal/relevance"
	"image-reader/api/internal/telegram"
	"image-reader/api/internal/vision/gemini"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info(".env not found, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	logger, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("logging")
	}
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		logger.Fatal("missing required env TELEGRAM_BOT_TOKEN")
	}

	engine, err := gemini.New(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.WithError(err).Fatal("gemini")
	}
	defer engine.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.WithError(err).Fatal("telegram")
	}
	bot.Debug = false

	svc := analyze.New(relevance.New(cfg.Denylist...), engine, logger)
	r := telegram.NewRouter(bot, svc, cfg.MaxPixels, logger)

	// ListenForWebhook регистрирует обработчик на DefaultServeMux, поэтому healthz туда же
	http.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := "0.0.0.0:" + cfg.Port
	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		startWebhookMode(logger, addr, bot, r, webhookURL)
	} else {
		startPollingMode(logger, addr, bot, r)
	}
}

// ---------------- Modes -----------------

func startWebhookMode(logger *log.Logger, addr string, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		logger.WithError(err).Fatal("webhook config")
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		logger.WithError(err).Fatal("set webhook")
	}

	updates := bot.ListenForWebhook(path)
	go func() {
		for upd := range updates {
			r.HandleUpdate(context.Background(), upd)
		}
		logger.Warn("webhook updates channel closed")
	}()

	logger.WithFields(log.Fields{"addr": addr, "path": path}).Info("webhook listening")
	if err := http.ListenAndServe(addr, nil); err != nil { // DefaultServeMux
		logger.WithError(err).Fatal("http server")
	}
}

func startPollingMode(logger *log.Logger, addr string, bot *tgbotapi.BotAPI, r *telegram.Router) {
	// healthz для платформы, для polling он не обязателен
	go func() {
		logger.WithField("addr", addr).Info("health server listening")
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.WithError(err).Fatal("http server")
		}
	}()

	// снимаем вебхук, иначе getUpdates вернёт 409
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.WithError(err).Warn("delete webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30 // long polling timeout (sec)
	logger.WithField("bot", bot.Self.UserName).Info("polling started")
	for upd := range bot.GetUpdatesChan(u) {
		r.HandleUpdate(context.Background(), upd)
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// лёгкий хэш для пути вебхука (не крипто, но стабильно для токена)
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
