package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/tileview"
)

func grayURI(t *testing.T, w, h int, c uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = c
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// execute runs the root command in a scratch directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestViewportAt(t *testing.T) {
	tests := []struct {
		name         string
		img, surface image.Point
		center       image.Point
		zoom         float64
		wantVisible  image.Rectangle
		wantDrawSurf image.Point
	}{
		{"centered", image.Pt(200, 100), image.Pt(40, 20), image.Pt(100, 50), 1, image.Rect(80, 40, 120, 60), image.Pt(200, 100)},
		{"zoomed out", image.Pt(200, 100), image.Pt(40, 20), image.Pt(100, 50), 0.5, image.Rect(30, 15, 70, 35), image.Pt(100, 50)},
		{"zoomed in", image.Pt(200, 100), image.Pt(40, 20), image.Pt(10, 10), 2, image.Rect(0, 10, 40, 30), image.Pt(400, 200)},
		{"corner", image.Pt(200, 100), image.Pt(40, 20), image.Pt(0, 0), 1, image.Rect(-20, -10, 20, 10), image.Pt(200, 100)},
		{"tiny zoom", image.Pt(10, 10), image.Pt(4, 4), image.Pt(5, 5), 0.01, image.Rect(-2, -2, 2, 2), image.Pt(1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vp := viewportAt(tt.img, tt.surface, tt.center, tt.zoom)
			assert.Equal(t, tt.wantVisible, vp.Visible)
			assert.Equal(t, tt.wantDrawSurf, vp.DrawSurface)
			assert.Equal(t, tt.surface, vp.ViewportSurface)
			assert.Equal(t, tt.img, vp.Content)
			assert.Equal(t, tt.zoom, vp.Scale)
		})
	}
}

func TestRender(t *testing.T) {
	uri := grayURI(t, 200, 150, 128)
	out := filepath.Join(t.TempDir(), "view.png")

	msg, err := execute(t, "render", uri, "--surface", "64x48", "--center", "100,75", "--zoom", "1", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, msg, "wrote "+out)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, color.RGBAModel.Convert(img.At(32, 24)))
}

func TestRender_BadZoom(t *testing.T) {
	_, err := execute(t, "render", grayURI(t, 10, 10, 1), "--zoom", "0", "--out", filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorContains(t, err, "zoom")
	renderZoom = 1
}

func TestInfo(t *testing.T) {
	msg, err := execute(t, "info", grayURI(t, 200, 150, 1))
	require.NoError(t, err)
	assert.Contains(t, msg, "format:       png")
	assert.Contains(t, msg, "200 x 150 (30,000 pixels)")
	assert.Contains(t, msg, "orientation:  1")
}

func TestInfo_Unreadable(t *testing.T) {
	_, err := execute(t, "info", "data:,not-an-image")
	assert.ErrorIs(t, err, tileview.ErrUnreadable)
}

func TestPan(t *testing.T) {
	msg, err := execute(t, "pan", grayURI(t, 300, 200, 9), "--surface", "60x40",
		"--steps", "3", "--delta", "10,0", "--start", "100,100", "--zoom", "1", "--metrics")
	require.NoError(t, err)
	assert.Contains(t, msg, "Visible")
	assert.Contains(t, msg, "tileview_")
}

func TestSessionSettle(t *testing.T) {
	t.Chdir(t.TempDir())
	ctx := context.Background()
	s, err := openSession(ctx, grayURI(t, 300, 200, 9))
	require.NoError(t, err)
	defer s.close()

	assert.Equal(t, image.Pt(300, 200), s.info.Size)
	s.v.Update(viewportAt(s.info.Size, image.Pt(60, 40), image.Pt(150, 100), 1))
	require.NoError(t, s.settle(ctx, 1))

	st := s.v.Stats()
	assert.Zero(t, st.InFlight)
	assert.Positive(t, st.Resident)
}

func TestSessionWait_Canceled(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := openSession(context.Background(), grayURI(t, 30, 20, 9))
	require.NoError(t, err)
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.wait(ctx, func() bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
}
