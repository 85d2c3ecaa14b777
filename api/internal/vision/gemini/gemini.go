package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"image-reader/api/internal/imaging"
	"image-reader/api/internal/vision"
)

const DefaultModel = "gemini-2.0-flash-exp"

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Engine struct {
	Model string

	client *genai.Client
	gen    generator
}

// New creates the client once; the key is not read from the environment here.
func New(ctx context.Context, apiKey, model string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Engine{
		Model:  model,
		client: cl,
		gen:    cl.GenerativeModel(model),
	}, nil
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// Answer sends (prompt, image) in a single request. Ретраев нет: ошибка сразу уходит наверх.
func (e *Engine) Answer(ctx context.Context, prompt string, img *imaging.Image) (vision.Answer, error) {
	if img == nil {
		return vision.Answer{}, e.fail(vision.KindTransport, errors.New("image is nil"))
	}
	parts := []genai.Part{
		genai.Text(prompt),
		genai.ImageData(img.Format, img.Data),
	}

	resp, err := e.gen.GenerateContent(ctx, parts...)
	if err != nil {
		return vision.Answer{}, e.fail(classify(err), err)
	}
	txt := strings.TrimSpace(allText(resp))
	if txt == "" {
		return vision.Answer{}, e.fail(vision.KindEmpty, errors.New("empty response"))
	}
	out := vision.Answer{Text: txt, Model: e.Model}
	if resp.UsageMetadata != nil {
		out.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

func (e *Engine) fail(kind vision.Kind, err error) error {
	return &vision.Error{Kind: kind, Engine: e.Name(), Err: err}
}

func classify(err error) vision.Kind {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return vision.KindRefused
	}
	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if ae.HTTPCode() == http.StatusTooManyRequests || ae.GRPCStatus().Code() == codes.ResourceExhausted {
			return vision.KindQuota
		}
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusTooManyRequests {
		return vision.KindQuota
	}
	if status.Code(err) == codes.ResourceExhausted {
		return vision.KindQuota
	}
	return vision.KindTransport
}

// allText склеивает все текстовые части первого кандидата с контентом.
func allText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
