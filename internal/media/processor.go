package media

import (
	"bulkq/internal/config"
	"bulkq/internal/domain"
	"bulkq/internal/ports"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	OpThumbnail        = "thumbnail"
	OpResize           = "resize"
	OpWatermark        = "watermark"
	OpRemoveBackground = "remove_background"
)

var ErrUnknownOperation = errors.New("unknown operation")

// Operations lists the task types Process understands.
var Operations = []string{OpThumbnail, OpResize, OpWatermark, OpRemoveBackground}

// Processor executes image tasks: it fetches the task's url, transforms the
// image and saves the output to storage.
type Processor struct {
	storage ports.ObjectStorage
	client  *http.Client
	cfg     config.Media
}

func New(storage ports.ObjectStorage, cfg config.Media) *Processor {
	return &Processor{
		storage: storage,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		cfg:     cfg,
	}
}

var _ ports.Processor = (*Processor)(nil)

func (p *Processor) Process(ctx context.Context, t domain.Task) (map[string]string, error) {
	if t.URL() == "" {
		return nil, fmt.Errorf("task %s: missing url", t.ID)
	}

	switch t.Type {
	case OpThumbnail:
		return p.thumbnail(ctx, t)
	case OpResize:
		return p.resize(ctx, t)
	case OpWatermark:
		return p.watermark(ctx, t)
	case OpRemoveBackground:
		return p.removeBackground(ctx, t)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, t.Type)
	}
}

// Supports reports whether op is a known task type.
func Supports(op string) bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

func (p *Processor) thumbnail(ctx context.Context, t domain.Task) (map[string]string, error) {
	width, height := p.cfg.ThumbnailWidth, p.cfg.ThumbnailHeight
	if v, ok := t.Payload["width"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid width %q", v)
		}
		width = n
	}
	if v, ok := t.Payload["height"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid height %q", v)
		}
		height = n
	}

	img, err := p.load(ctx, t.URL())
	if err != nil {
		return nil, err
	}
	thumb := imaging.Thumbnail(img, width, height, imaging.Lanczos)
	return p.save(ctx, t, thumb, imaging.JPEG)
}

// resize scales to width x height; a zero dimension keeps the aspect ratio.
func (p *Processor) resize(ctx context.Context, t domain.Task) (map[string]string, error) {
	width, err := dimension(t.Payload, "width")
	if err != nil {
		return nil, err
	}
	height, err := dimension(t.Payload, "height")
	if err != nil {
		return nil, err
	}
	if width == 0 && height == 0 {
		return nil, errors.New("resize needs width or height")
	}

	img, err := p.load(ctx, t.URL())
	if err != nil {
		return nil, err
	}
	resized := imaging.Resize(img, width, height, imaging.Lanczos)
	return p.save(ctx, t, resized, imaging.JPEG)
}

// watermark draws the payload text in the bottom-right corner.
func (p *Processor) watermark(ctx context.Context, t domain.Task) (map[string]string, error) {
	text := t.Payload["text"]
	if text == "" {
		text = "bulkq"
	}

	img, err := p.load(ctx, t.URL())
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(img)
	dc.SetColor(color.White)
	margin := 10.0
	dc.DrawStringAnchored(text, float64(dc.Width())-margin, float64(dc.Height())-margin, 1, 0)

	return p.save(ctx, t, dc.Image(), imaging.JPEG)
}

func (p *Processor) save(ctx context.Context, t domain.Task, img image.Image, format imaging.Format) (map[string]string, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, format); err != nil {
		return nil, fmt.Errorf("failed to encode %s output: %w", t.Type, err)
	}

	ext := ".jpg"
	if format == imaging.PNG {
		ext = ".png"
	}
	dst, err := p.storage.Save(ctx, t.Type, t.ID+ext, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s output: %w", t.Type, err)
	}

	b := img.Bounds()
	return map[string]string{
		"path":   dst,
		"width":  strconv.Itoa(b.Dx()),
		"height": strconv.Itoa(b.Dy()),
	}, nil
}

func dimension(payload map[string]string, key string) (int, error) {
	v, ok := payload[key]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
