package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSave(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	s := NewFile(base)

	p, err := s.Save(context.Background(), "thumbnail", "abc.jpg", strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "thumbnail", "abc.jpg"), p)

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(b))
}

func TestFileSaveStaysUnderSubdir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	p, err := NewFile(base).Save(context.Background(), "resize", "../../escape.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "resize", "escape.jpg"), p)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", contentType("a.jpg"))
	assert.Equal(t, "image/png", contentType("a.png"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}
