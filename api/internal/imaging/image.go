package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // регистрация декодера
	"image/jpeg"
	"image/png"
	"math"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp" // регистрация декодера
	xdraw "golang.org/x/image/draw"

	"image-reader/api/internal/util"
)

// DefaultMaxPixels: предел площади картинки перед отправкой в модель.
const DefaultMaxPixels = 18_000_000

// MaxDecodePixels caps width*height when Options.MaxPixels is 0.
const MaxDecodePixels = 100_000_000

var (
	ErrEmpty       = errors.New("image is empty")
	ErrUnsupported = errors.New("unsupported image type")
	ErrDecode      = errors.New("cannot decode image")
	ErrTooLarge    = errors.New("image dimensions too large")
)

// AllowedMIMETypes lists upload types accepted by Load, keyed by MIME type.
var AllowedMIMETypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/bmp":  "bmp",
}

// AllowedExtensions is what the upload controls advertise.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp"}

type Options struct {
	// MaxPixels bounds width*height; 0 disables downscaling.
	// Images above 4*MaxPixels (MaxDecodePixels when 0) are rejected undecoded.
	MaxPixels int
}

func (o Options) decodeLimit() int {
	if o.MaxPixels > 0 {
		return 4 * o.MaxPixels
	}
	return MaxDecodePixels
}

// Image is an uploaded picture prepared for inference. Data is always PNG or JPEG.
type Image struct {
	Data   []byte
	MIME   string
	Format string // "png" | "jpeg", формат Data
	Source string // исходный формат загрузки
	Width  int
	Height int
}

// DataURL returns the image as a data: URI, for previews.
func (im *Image) DataURL() string {
	return util.MakeDataURL(im.MIME, base64.StdEncoding.EncodeToString(im.Data))
}

// Load validates and decodes raw upload bytes. PNG and JPEG that need no
// orientation fix or downscaling are passed through unchanged; everything
// else is re-encoded.
func Load(data []byte, opts Options) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	detected := mimetype.Detect(data)
	source, ok := allowedFormat(detected)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected.String())
	}

	// размеры из заголовка: битмап не выделяется
	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if px := int64(hdr.Width) * int64(hdr.Height); px > int64(opts.decodeLimit()) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, hdr.Width, hdr.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	changed := false
	if source == "jpeg" {
		if o := orientationOf(data); o != 1 {
			img = applyOrientation(img, o)
			changed = true
		}
	}
	if opts.MaxPixels > 0 {
		if scaled, ok := downscale(img, opts.MaxPixels); ok {
			img = scaled
			changed = true
		}
	}

	b := img.Bounds()
	out := &Image{Source: source, Width: b.Dx(), Height: b.Dy()}

	if !changed && (source == "png" || source == "jpeg") {
		out.Data = data
		out.Format = source
		out.MIME = "image/" + source
		return out, nil
	}

	var buf bytes.Buffer
	if source == "jpeg" {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
		out.Format = "jpeg"
	} else {
		err = png.Encode(&buf, img)
		out.Format = "png"
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", out.Format, err)
	}
	out.Data = buf.Bytes()
	out.MIME = "image/" + out.Format
	return out, nil
}

// allowedFormat проходит по цепочке родителей (apng -> png и т.п.).
func allowedFormat(m *mimetype.MIME) (string, bool) {
	for ; m != nil; m = m.Parent() {
		for mt, format := range AllowedMIMETypes {
			if m.Is(mt) {
				return format, true
			}
		}
	}
	return "", false
}

func downscale(img image.Image, maxPixels int) (image.Image, bool) {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total <= maxPixels {
		return img, false
	}
	scale := math.Sqrt(float64(maxPixels) / float64(total))
	newW := int(float64(b.Dx()) * scale)
	newH := int(float64(b.Dy()) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst, true
}
