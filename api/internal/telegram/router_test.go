package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/memory"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/imaging"
	"image-reader/api/internal/relevance"
	"image-reader/api/internal/vision"
)

type fakeBot struct {
	fileURL string
	sent    []string
	actions int
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.actions++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if b.fileURL == "" {
		return "", errors.New("file not found")
	}
	return b.fileURL + "/" + fileID, nil
}

type fakeEngine struct {
	calls int
	err   error
}

func (f *fakeEngine) Name() string     { return "fake" }
func (f *fakeEngine) GetModel() string { return "fake-model" }
func (f *fakeEngine) Answer(context.Context, string, *imaging.Image) (vision.Answer, error) {
	f.calls++
	if f.err != nil {
		return vision.Answer{}, f.err
	}
	return vision.Answer{Text: "Two cats on a sofa.", Model: "fake-model"}, nil
}

func pngServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(bot *fakeBot, eng *fakeEngine) *Router {
	logger := &log.Logger{Handler: discard.New(), Level: log.DebugLevel}
	svc := analyze.New(relevance.Default(), eng, logger)
	return NewRouter(bot, svc, imaging.DefaultMaxPixels, logger)
}

func photoMessage(caption, fileID string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 42},
		Caption: caption,
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: fileID, Width: 800, Height: 800},
		},
	}
}

func TestHandleUpdate(t *testing.T) {
	srv := pngServer(t)

	tests := []struct {
		name      string
		msg       *tgbotapi.Message
		engineErr error
		wantCalls int
		wantLast  string
	}{
		{
			name:      "photo with caption",
			msg:       photoMessage("How many cats are there?", "big"),
			wantCalls: 1,
			wantLast:  "🤖 AI Response:\n\nTwo cats on a sofa.",
		},
		{
			name:     "photo without caption",
			msg:      photoMessage("", "big"),
			wantLast: "⚠️ " + analyze.MsgEmptyPrompt,
		},
		{
			name:     "off-topic caption",
			msg:      photoMessage("What is the weather today?", "big"),
			wantLast: "❌ " + analyze.MsgOffTopic,
		},
		{
			name:     "text only",
			msg:      &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "Describe the image"},
			wantLast: "⚠️ " + analyze.MsgNoImage,
		},
		{
			name: "image document",
			msg: &tgbotapi.Message{
				Chat:     &tgbotapi.Chat{ID: 42},
				Caption:  "Describe it",
				Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"},
			},
			wantCalls: 1,
			wantLast:  "🤖 AI Response:\n\nTwo cats on a sofa.",
		},
		{
			name: "non-image document",
			msg: &tgbotapi.Message{
				Chat:     &tgbotapi.Chat{ID: 42},
				Caption:  "Describe it",
				Document: &tgbotapi.Document{FileID: "doc", MimeType: "application/pdf"},
			},
			wantLast: "⚠️ " + analyze.MsgNoImage,
		},
		{
			name:     "download fails",
			msg:      photoMessage("Describe it", "missing"),
			wantLast: "❌ An error occurred: could not download the image",
		},
		{
			name:      "inference error",
			msg:       photoMessage("Describe it", "big"),
			engineErr: &vision.Error{Kind: vision.KindQuota, Engine: "fake", Err: errors.New("429")},
			wantCalls: 1,
			wantLast:  "❌ An error occurred: fake quota: 429",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := &fakeBot{fileURL: srv.URL}
			eng := &fakeEngine{err: tt.engineErr}
			r := newTestRouter(bot, eng)

			r.HandleUpdate(context.Background(), tgbotapi.Update{Message: tt.msg})

			assert.Equal(t, tt.wantCalls, eng.calls)
			require.NotEmpty(t, bot.sent)
			assert.Equal(t, tt.wantLast, bot.sent[len(bot.sent)-1])
		})
	}
}

func TestHandleUpdate_Commands(t *testing.T) {
	command := func(text string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: 1},
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		}}
	}

	bot := &fakeBot{}
	eng := &fakeEngine{}
	r := newTestRouter(bot, eng)

	r.HandleUpdate(context.Background(), command("/start"))
	r.HandleUpdate(context.Background(), command("/health"))
	r.HandleUpdate(context.Background(), command("/weather"))

	require.Len(t, bot.sent, 3)
	assert.Contains(t, bot.sent[0], "Send a photo with your question as the caption.")
	assert.Equal(t, "✅ OK (fake-model)", bot.sent[1])
	assert.Contains(t, bot.sent[2], "Unknown command")
	assert.Zero(t, eng.calls)
}

func TestHandleUpdate_NoMessage(t *testing.T) {
	bot := &fakeBot{}
	newTestRouter(bot, &fakeEngine{}).HandleUpdate(context.Background(), tgbotapi.Update{})
	assert.Empty(t, bot.sent)
}

func TestSendResult_Truncates(t *testing.T) {
	bot := &fakeBot{}
	r := newTestRouter(bot, &fakeEngine{})

	r.SendResult(1, strings.Repeat("я", 3000)) // 6000 байт

	require.Len(t, bot.sent, 1)
	got := strings.TrimPrefix(bot.sent[0], "🤖 AI Response:\n\n")
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len(got), maxMessageLen+len("…"))
	assert.Equal(t, strings.Repeat("я", maxMessageLen/2)+"…", got)
}

func TestImageFileID(t *testing.T) {
	assert.Equal(t, "big", imageFileID(photoMessage("", "big")))
	assert.Equal(t, "", imageFileID(&tgbotapi.Message{}))
	assert.Equal(t, "d", imageFileID(&tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d", MimeType: "IMAGE/BMP"}}))
}

func TestHandleUpdate_DownloadErrorHidesToken(t *testing.T) {
	const token = "123456:SECRETTOKEN"
	bot := &fakeBot{fileURL: "http://127.0.0.1:1/file/bot" + token}
	eng := &fakeEngine{}
	mem := memory.New()
	logger := &log.Logger{Handler: mem, Level: log.DebugLevel}
	r := NewRouter(bot, analyze.New(relevance.Default(), eng, logger), imaging.DefaultMaxPixels, logger)

	r.HandleUpdate(context.Background(), tgbotapi.Update{Message: photoMessage("Describe it", "photos/x.jpg")})

	assert.Zero(t, eng.calls)
	require.NotEmpty(t, bot.sent)
	assert.Equal(t, "❌ An error occurred: could not download the image", bot.sent[len(bot.sent)-1])
	for _, s := range bot.sent {
		assert.NotContains(t, s, "SECRETTOKEN")
	}

	require.Len(t, mem.Entries, 1)
	logged := fmt.Sprint(mem.Entries[0].Fields["error"])
	assert.Contains(t, logged, "bot<redacted>")
	assert.NotContains(t, logged, "SECRETTOKEN")
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t,
		"https://api.telegram.org/file/bot<redacted>/photos/file_1.jpg",
		redactToken("https://api.telegram.org/file/bot123:AA-bb_CC/photos/file_1.jpg"))
	assert.Equal(t, "no token here", redactToken("no token here"))
}
