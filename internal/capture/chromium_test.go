package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapturer struct {
	png  []byte
	err  error
	opts Options
}

func (f *fakeCapturer) CapturePNG(_ context.Context, opts Options) ([]byte, error) {
	f.opts = opts
	return f.png, f.err
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "week.png")
	fc := &fakeCapturer{png: []byte("\x89PNG fake")}

	require.NoError(t, WritePNG(context.Background(), fc, Options{URL: "http://x/calendar"}, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fc.png, data)
	assert.Equal(t, "http://x/calendar", fc.opts.URL)
}

func TestWritePNGErrors(t *testing.T) {
	boom := errors.New("chrome missing")
	err := WritePNG(context.Background(), &fakeCapturer{err: boom}, Options{URL: "u"}, filepath.Join(t.TempDir(), "a.png"))
	assert.ErrorIs(t, err, boom)

	assert.Error(t, WritePNG(context.Background(), &fakeCapturer{}, Options{URL: "u"}, ""))
}

func TestChromiumNeedsURL(t *testing.T) {
	_, err := Chromium{}.CapturePNG(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoURL)
}
