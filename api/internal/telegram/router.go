package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/apex/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/imaging"
)

const (
	maxMessageLen = 3900

	startText = "Пришли фото с подписью-вопросом, отвечу по содержимому картинки.\n" +
		"Send a photo with your question as the caption.\n\n" +
		"1. Upload your image\n" +
		"2. Put your question about the image content in the caption\n" +
		"3. Wait for AI response\n\n" +
		"Note: Please ask questions only about the image content.\n" +
		"Commands: /help, /health"
	analyzingText = "AI is analyzing your image..."
)

// ErrDownload is shown instead of the underlying error: file URLs carry the bot token.
var ErrDownload = errors.New("could not download the image")

// Bot: то, что роутеру нужно от tgbotapi.BotAPI.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Router handles each update on its own; no chat state is kept between updates.
type Router struct {
	Bot       Bot
	Svc       *analyze.Service
	MaxPixels int
	Log       log.Interface

	download func(ctx context.Context, url string) ([]byte, error)
}

func NewRouter(bot Bot, svc *analyze.Service, maxPixels int, logger log.Interface) *Router {
	if logger == nil {
		logger = log.Log
	}
	return &Router{Bot: bot, Svc: svc, MaxPixels: maxPixels, Log: logger, download: download}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		r.send(cid, "✅ OK ("+r.Svc.Model()+")")
	default:
		r.send(cid, "Неизвестная команда. Unknown command, try /help")
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}

	cid := msg.Chat.ID
	prompt := msg.Caption
	fileID := imageFileID(msg)
	if fileID == "" {
		// текст без картинки
		prompt = msg.Text
	}

	var img *imaging.Image
	if fileID != "" {
		_, _ = r.Bot.Request(tgbotapi.NewChatAction(cid, tgbotapi.ChatTyping))
		var err error
		img, err = r.fetchImage(ctx, fileID)
		if err != nil {
			r.Log.WithFields(log.Fields{"chat_id": cid, "error": redactToken(err.Error())}).Warn("telegram image rejected")
			if errors.Is(err, ErrDownload) {
				err = ErrDownload
			}
			r.SendError(cid, err)
			return
		}
		if strings.TrimSpace(prompt) != "" {
			r.send(cid, analyzingText)
		}
	}

	res, err := r.Svc.Analyze(ctx, analyze.Request{Prompt: prompt, Image: img})
	if err != nil {
		out := analyze.Explain(err)
		prefix := "❌ "
		if out.Level == analyze.LevelWarning {
			prefix = "⚠️ "
		}
		r.send(cid, prefix+out.Message)
		return
	}
	r.SendResult(cid, res.Answer)
}

func (r *Router) fetchImage(ctx context.Context, fileID string) (*imaging.Image, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	raw, err := r.download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	return imaging.Load(raw, imaging.Options{MaxPixels: r.MaxPixels})
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.Log.WithError(err).WithField("chat_id", chatID).Error("telegram send")
	}
}

func (r *Router) SendResult(chatID int64, text string) {
	if len(text) > maxMessageLen {
		text = truncate(text, maxMessageLen) + "…"
	}
	r.send(chatID, "🤖 AI Response:\n\n"+text)
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("❌ An error occurred: %v", err))
}

// truncate режет по границе руны.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
