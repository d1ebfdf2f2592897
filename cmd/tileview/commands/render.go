package commands

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/image/math/f64"
)

var (
	renderZoom    float64
	renderCenter  string
	renderOut     string
	renderTimeout time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render <uri>",
	Short: "Decode the tiles of one viewport and write it as PNG",
	Long: `Render drives a viewer for a single viewport, waits until every tile
is resident and paints the visible area into a PNG file.

Examples:
  # Top-left corner at full resolution
  tileview render big.jpg --surface 1024x768 --center 512,384

  # Whole image shrunk to a quarter
  tileview render s3://bucket/big.tif --zoom 0.25 --out thumb.png`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.Float64Var(&renderZoom, "zoom", 1, "zoom scale")
	f.StringVar(&renderCenter, "center", "", "viewport center in image pixels, X,Y (default: image center)")
	f.StringVarP(&renderOut, "out", "o", "tileview.png", "output PNG file")
	f.DurationVar(&renderTimeout, "timeout", 5*time.Minute, "time allowed for decoding")
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderZoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", renderZoom)
	}
	surface, err := cfg.SurfaceSize()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), renderTimeout)
	defer cancel()

	s, err := openSession(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.close()

	center := s.info.Size.Div(2)
	if renderCenter != "" {
		if center, err = parsePoint(renderCenter); err != nil {
			return err
		}
	}

	vp := viewportAt(s.info.Size, surface, center, renderZoom)
	s.v.Update(vp)
	if err := s.settle(ctx, 2); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	dst := image.NewRGBA(image.Rectangle{Max: surface})
	m := f64.Aff3{1, 0, -float64(vp.Visible.Min.X), 0, 1, -float64(vp.Visible.Min.Y)}
	painted := s.v.Draw(dst, m)

	if err := writePNG(renderOut, dst); err != nil {
		return err
	}
	r, _ := s.v.Region()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d tiles, decode rect %v, sample %d, %d failed\n",
		renderOut, painted, r.DecodeSrc, r.Sample, s.failed)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
