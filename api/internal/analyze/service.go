package analyze

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"image-reader/api/internal/imaging"
	"image-reader/api/internal/relevance"
	"image-reader/api/internal/vision"
)

var (
	ErrNoImage     = errors.New("no image uploaded")
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrOffTopic    = errors.New("prompt is not about the image")
)

type Request struct {
	Prompt string
	Image  *imaging.Image
}

type Result struct {
	RequestID   string
	Answer      string
	Model       string
	TotalTokens int
	Elapsed     time.Duration
}

// Service runs one user interaction: validate, filter, ask the engine.
// It keeps no state between calls.
type Service struct {
	filter *relevance.Filter
	engine vision.Engine
	log    log.Interface
}

func New(filter *relevance.Filter, engine vision.Engine, logger log.Interface) *Service {
	if filter == nil {
		filter = relevance.Default()
	}
	if logger == nil {
		logger = log.Log
	}
	return &Service{filter: filter, engine: engine, log: logger}
}

func (s *Service) Model() string { return s.engine.GetModel() }

// Analyze never calls the engine unless an image is present, the prompt is
// non-empty and the relevance filter accepts it. Engine errors are returned unchanged.
func (s *Service) Analyze(ctx context.Context, req Request) (Result, error) {
	res := Result{RequestID: uuid.NewString()}
	start := time.Now()

	entry := s.log.WithFields(log.Fields{
		"request_id": res.RequestID,
		"prompt_len": len(req.Prompt),
	})

	if req.Image == nil {
		entry.WithField("outcome", "no_image").Warn("analyze rejected")
		return res, ErrNoImage
	}
	entry = entry.WithFields(log.Fields{
		"image_format": req.Image.Format,
		"image_bytes":  len(req.Image.Data),
	})

	if strings.TrimSpace(req.Prompt) == "" {
		entry.WithField("outcome", "empty_prompt").Warn("analyze rejected")
		return res, ErrEmptyPrompt
	}
	if term, hit := s.filter.Match(req.Prompt); hit {
		entry.WithFields(log.Fields{"outcome": "off_topic", "term": term}).Warn("analyze rejected")
		return res, ErrOffTopic
	}

	ans, err := s.engine.Answer(ctx, req.Prompt, req.Image)
	res.Elapsed = time.Since(start)
	entry = entry.WithFields(log.Fields{
		"engine":     s.engine.Name(),
		"model":      s.engine.GetModel(),
		"elapsed_ms": res.Elapsed.Milliseconds(),
	})
	if err != nil {
		kind, _ := vision.KindOf(err)
		entry.WithError(err).WithFields(log.Fields{"outcome": "inference_failed", "kind": kind.String()}).Error("analyze failed")
		return res, err
	}

	res.Answer = ans.Text
	res.Model = ans.Model
	res.TotalTokens = ans.TotalTokens
	entry.WithFields(log.Fields{"outcome": "answered", "tokens": ans.TotalTokens}).Info("analyze done")
	return res, nil
}
