package media

import (
	"bulkq/internal/domain"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/disintegration/imaging"
)

var ErrRemoveBGDisabled = errors.New("background removal service not configured")

// removeBackground sends the source image to the configured cut-out service
// and stores the PNG it returns.
func (p *Processor) removeBackground(ctx context.Context, t domain.Task) (map[string]string, error) {
	if p.cfg.RemoveBGEndpoint == "" {
		return nil, ErrRemoveBGDisabled
	}

	src, err := p.fetch(ctx, t.URL())
	if err != nil {
		return nil, err
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image_file", t.ID)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(src); err != nil {
		return nil, err
	}
	if err := mw.WriteField("size", "auto"); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.RemoveBGEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build background removal request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "image/png")
	if p.cfg.RemoveBGAPIKey != "" {
		req.Header.Set("X-Api-Key", p.cfg.RemoveBGAPIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("background removal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("background removal: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	out, err := p.readLimited(resp.Body, "background removal response")
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("background removal returned an undecodable image: %w", err)
	}
	return p.save(ctx, t, img, imaging.PNG)
}
