package vision

import (
	"context"
	"errors"
	"fmt"

	"image-reader/api/internal/imaging"
)

// Engine answers a free-text question about an image.
type Engine interface {
	Name() string
	GetModel() string
	Answer(ctx context.Context, prompt string, img *imaging.Image) (Answer, error)
}

type Answer struct {
	Text        string
	Model       string
	TotalTokens int
}

type Kind int

const (
	KindTransport Kind = iota // сеть, таймауты, неизвестные ошибки
	KindQuota                 // 429 / ResourceExhausted
	KindRefused               // блокировка по политике контента
	KindEmpty                 // модель не вернула текста
)

func (k Kind) String() string {
	switch k {
	case KindQuota:
		return "quota"
	case KindRefused:
		return "refused"
	case KindEmpty:
		return "empty"
	default:
		return "transport"
	}
}

// Error is the only error type engines return.
type Error struct {
	Kind   Kind
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of an engine error; ok is false for foreign errors.
func KindOf(err error) (Kind, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind, true
	}
	return KindTransport, false
}
