package web

import (
	"encoding/json"
	"net/http"

	"github.com/apex/log"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/imaging"
)

type Options struct {
	MaxUploadBytes int64
	MaxPixels      int
}

type Handle struct {
	svc  *analyze.Service
	opts Options
	log  log.Interface
}

func New(svc *analyze.Service, opts Options, logger log.Interface) *Handle {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if logger == nil {
		logger = log.Log
	}
	return &Handle{svc: svc, opts: opts, log: logger}
}

// Routes registers the page, the JSON API and the health check.
func (h *Handle) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/analyze", h.AnalyzeForm)
	mux.HandleFunc("/v1/analyze", h.AnalyzeJSON)
	return mux
}

func (h *Handle) loadImage(data []byte) (*imaging.Image, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return imaging.Load(data, imaging.Options{MaxPixels: h.opts.MaxPixels})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
