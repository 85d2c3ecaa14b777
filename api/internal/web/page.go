package web

import (
	_ "embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"image-reader/api/internal/analyze"
	"image-reader/api/internal/imaging"
)

//go:embed templates/index.html
var indexHTML string

var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type banner struct {
	Level   analyze.Level
	Message string
}

type pageData struct {
	Accept      string
	Prompt      string
	ImageURL    template.URL
	Banner      *banner
	Answer      template.HTML
	Model       string
	RequestID   string
	Extensions  string
	Placeholder string
}

func newPage() pageData {
	exts := make([]string, 0, len(imaging.AllowedExtensions))
	for _, e := range imaging.AllowedExtensions {
		exts = append(exts, "."+e)
	}
	return pageData{
		Accept:      strings.Join(exts, ","),
		Extensions:  strings.ToUpper(strings.Join(imaging.AllowedExtensions, ", ")),
		Placeholder: "Example: Describe what's in this image...",
	}
}

func (h *Handle) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.render(w, http.StatusOK, newPage())
}

// AnalyzeForm handles the multipart form: image file + prompt.
// Ошибки запроса показываются баннером на той же странице, процесс не падает.
func (h *Handle) AnalyzeForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	page := newPage()

	if r.ContentLength > h.opts.MaxUploadBytes {
		page.Banner = &banner{Level: analyze.LevelError, Message: "An error occurred: upload is too large"}
		h.render(w, http.StatusRequestEntityTooLarge, page)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		code := http.StatusBadRequest
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			code = http.StatusRequestEntityTooLarge
		}
		h.log.WithError(err).Warn("bad upload form")
		page.Banner = &banner{Level: analyze.LevelError, Message: "An error occurred: " + err.Error()}
		h.render(w, code, page)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	page.Prompt = r.FormValue("prompt")

	var raw []byte
	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		raw, err = io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			page.Banner = &banner{Level: analyze.LevelError, Message: "An error occurred: " + err.Error()}
			h.render(w, http.StatusBadRequest, page)
			return
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		page.Banner = &banner{Level: analyze.LevelError, Message: "An error occurred: " + err.Error()}
		h.render(w, http.StatusBadRequest, page)
		return
	}

	img, err := h.loadImage(raw)
	if err != nil {
		h.log.WithError(err).Warn("image rejected")
		page.Banner = &banner{Level: analyze.LevelError, Message: "An error occurred: " + err.Error()}
		h.render(w, imageErrorStatus(err), page)
		return
	}
	if img != nil {
		page.ImageURL = template.URL(img.DataURL())
	}

	res, err := h.svc.Analyze(r.Context(), analyze.Request{Prompt: page.Prompt, Image: img})
	page.RequestID = res.RequestID
	w.Header().Set("X-Request-ID", res.RequestID)
	if err != nil {
		out := analyze.Explain(err)
		page.Banner = &banner{Level: out.Level, Message: out.Message}
		// валидационные ошибки: обычный ответ страницы
		h.render(w, http.StatusOK, page)
		return
	}

	page.Answer = renderAnswer(res.Answer)
	page.Model = res.Model
	h.render(w, http.StatusOK, page)
}

func (h *Handle) render(w http.ResponseWriter, code int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := indexTmpl.Execute(w, data); err != nil {
		h.log.WithError(err).Error("render page")
	}
}

func imageErrorStatus(err error) int {
	switch {
	case errors.Is(err, imaging.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, imaging.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
