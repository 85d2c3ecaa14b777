package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/util"
	"image-reader/api/internal/vision"
)

type AnalyzeRequest struct {
	Prompt   string `json:"prompt"`
	ImageB64 string `json:"image_b64"` // base64 или data:URL
}

type AnalyzeResponse struct {
	RequestID string `json:"request_id"`
	Answer    string `json:"answer"`
	Model     string `json:"model"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Level     string `json:"level,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handle) AnalyzeJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST only", Kind: "method"})
		return
	}
	// base64 раздувает размер на ~4/3
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes*4/3+4096)
	defer r.Body.Close()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload is too large", Kind: "too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json: " + err.Error(), Kind: "bad_request"})
		return
	}

	var raw []byte
	if req.ImageB64 != "" {
		b, _, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad image_b64", Kind: "bad_request"})
			return
		}
		raw = b
	}
	img, err := h.loadImage(raw)
	if err != nil {
		writeJSON(w, imageErrorStatus(err), errorResponse{Error: err.Error(), Kind: "bad_image"})
		return
	}

	res, err := h.svc.Analyze(r.Context(), analyze.Request{Prompt: req.Prompt, Image: img})
	w.Header().Set("X-Request-ID", res.RequestID)
	if err != nil {
		out := analyze.Explain(err)
		writeJSON(w, apiStatus(err), errorResponse{
			Error:     out.Message,
			Kind:      out.Code,
			Level:     string(out.Level),
			RequestID: res.RequestID,
		})
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{RequestID: res.RequestID, Answer: res.Answer, Model: res.Model})
}

func apiStatus(err error) int {
	switch {
	case errors.Is(err, analyze.ErrNoImage), errors.Is(err, analyze.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, analyze.ErrOffTopic):
		return http.StatusUnprocessableEntity
	}
	if kind, _ := vision.KindOf(err); kind == vision.KindQuota {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}
