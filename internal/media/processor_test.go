package media

import (
	"bulkq/internal/config"
	"bulkq/internal/domain"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStorage) Save(_ context.Context, subdir, filename string, src io.Reader) (string, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	key := subdir + "/" + filename
	m.objects[key] = b
	return key, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	src := pngBytes(t, 200, 100)
	mux := http.NewServeMux()
	mux.HandleFunc("/cat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() config.Media {
	return config.Media{
		ThumbnailWidth:  64,
		ThumbnailHeight: 64,
		FetchTimeout:    5 * time.Second,
		MaxImageBytes:   1 << 20,
	}
}

func task(op, url string, extra map[string]string) domain.Task {
	payload := map[string]string{"url": url}
	for k, v := range extra {
		payload[k] = v
	}
	return domain.Task{ID: "t1", Type: op, Payload: payload}
}

func TestProcessImageOperations(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)

	tests := []struct {
		name      string
		task      domain.Task
		wantPath  string
		wantSize  [2]string
		wantError string
	}{
		{
			name:     "thumbnail uses configured size",
			task:     task(OpThumbnail, srv.URL+"/cat.png", nil),
			wantPath: "thumbnail/t1.jpg",
			wantSize: [2]string{"64", "64"},
		},
		{
			name:     "thumbnail honours payload size",
			task:     task(OpThumbnail, srv.URL+"/cat.png", map[string]string{"width": "32", "height": "16"}),
			wantPath: "thumbnail/t1.jpg",
			wantSize: [2]string{"32", "16"},
		},
		{
			name:     "resize keeps aspect ratio",
			task:     task(OpResize, srv.URL+"/cat.png", map[string]string{"width": "50"}),
			wantPath: "resize/t1.jpg",
			wantSize: [2]string{"50", "25"},
		},
		{
			name:     "watermark keeps dimensions",
			task:     task(OpWatermark, srv.URL+"/cat.png", map[string]string{"text": "(c) me"}),
			wantPath: "watermark/t1.jpg",
			wantSize: [2]string{"200", "100"},
		},
		{
			name:      "resize without dimensions",
			task:      task(OpResize, srv.URL+"/cat.png", nil),
			wantError: "needs width or height",
		},
		{
			name:      "invalid thumbnail width",
			task:      task(OpThumbnail, srv.URL+"/cat.png", map[string]string{"width": "wide"}),
			wantError: "invalid width",
		},
		{
			name:      "missing source",
			task:      task(OpThumbnail, srv.URL+"/missing.png", nil),
			wantError: "unexpected status 404",
		},
		{
			name:      "undecodable source",
			task:      task(OpThumbnail, srv.URL+"/garbage", nil),
			wantError: "failed to decode image",
		},
		{
			name:      "unknown operation",
			task:      task("sepia", srv.URL+"/cat.png", nil),
			wantError: "unknown operation",
		},
		{
			name:      "missing url",
			task:      domain.Task{ID: "t1", Type: OpThumbnail},
			wantError: "missing url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := &memStorage{}
			p := New(store, testConfig())
			out, err := p.Process(context.Background(), tt.task)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				assert.Empty(t, store.objects)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, out["path"])
			assert.Equal(t, tt.wantSize[0], out["width"])
			assert.Equal(t, tt.wantSize[1], out["height"])
			assert.NotEmpty(t, store.objects[tt.wantPath])
		})
	}
}

func TestProcessRejectsOversizedSource(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	cfg := testConfig()
	cfg.MaxImageBytes = 10

	_, err := New(&memStorage{}, cfg).Process(context.Background(), task(OpThumbnail, srv.URL+"/cat.png", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 10 bytes")
}

func TestRemoveBackground(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	cutout := pngBytes(t, 20, 10)

	var gotKey, gotField string
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		f, _, err := r.FormFile("image_file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		if len(b) > 0 {
			gotField = "image_file"
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cutout)
	}))
	defer svc.Close()

	cfg := testConfig()
	cfg.RemoveBGEndpoint = svc.URL
	cfg.RemoveBGAPIKey = "secret"
	store := &memStorage{}

	out, err := New(store, cfg).Process(context.Background(), task(OpRemoveBackground, srv.URL+"/cat.png", nil))
	require.NoError(t, err)
	assert.Equal(t, "remove_background/t1.png", out["path"])
	assert.Equal(t, "20", out["width"])
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "image_file", gotField)
}

func TestRemoveBackgroundServiceError(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "credits exhausted", http.StatusPaymentRequired)
	}))
	defer svc.Close()

	cfg := testConfig()
	cfg.RemoveBGEndpoint = svc.URL

	_, err := New(&memStorage{}, cfg).Process(context.Background(), task(OpRemoveBackground, srv.URL+"/cat.png", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")
	assert.Contains(t, err.Error(), "credits exhausted")
}

func TestRemoveBackgroundDisabled(t *testing.T) {
	t.Parallel()

	_, err := New(&memStorage{}, testConfig()).Process(context.Background(), task(OpRemoveBackground, "http://example.invalid/a.png", nil))
	assert.ErrorIs(t, err, ErrRemoveBGDisabled)
}

func TestSupports(t *testing.T) {
	t.Parallel()

	for _, op := range Operations {
		assert.True(t, Supports(op), op)
	}
	assert.False(t, Supports("sepia"))
}
