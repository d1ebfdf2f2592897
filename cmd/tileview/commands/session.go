package commands

import (
	"context"
	"fmt"
	"image"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/tileview"
)

// session drives a Viewer from the command goroutine, which acts as its
// owner.
type session struct {
	v       *tileview.Viewer
	reg     *prometheus.Registry
	info    tileview.ImageInfo
	initErr error
	failed  int
}

func openSession(ctx context.Context, uri string) (*session, error) {
	s := &session{reg: prometheus.NewRegistry()}
	listener := tileview.ListenerFuncs{
		InitCompleted: func(info tileview.ImageInfo) { s.info = info },
		InitError:     func(_ string, err error) { s.initErr = err },
		DecodeError:   func(tileview.Tile, error) { s.failed++ },
	}
	opts := append(cfg.ViewerOptions(),
		tileview.WithListener(listener),
		tileview.WithRegisterer(s.reg),
	)
	s.v = tileview.New(opts...)
	s.v.SetImage(uri)

	err := s.wait(ctx, func() bool { return s.v.Ready() || s.initErr != nil })
	if err == nil {
		err = s.initErr
	}
	if err != nil {
		s.v.Close()
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return s, nil
}

func (s *session) close() { s.v.Close() }

// wait drains results until done reports true.
func (s *session) wait(ctx context.Context, done func() bool) error {
	for {
		s.v.Drain()
		if done() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.v.Notify():
		}
	}
}

// settle waits until no tile is in flight. Tiles that failed are requested
// again, up to retries times.
func (s *session) settle(ctx context.Context, retries int) error {
	for {
		err := s.wait(ctx, func() bool { return s.v.Stats().InFlight == 0 })
		if err != nil {
			return err
		}
		if retries == 0 || s.v.Refresh() == 0 {
			return nil
		}
		retries--
	}
}

// viewportAt returns the viewport of a surface-sized window centered on
// center, in image pixels, at the given zoom.
func viewportAt(img, surface, center image.Point, zoom float64) tileview.Viewport {
	drawSurface := image.Pt(max(1, int(float64(img.X)*zoom)), max(1, int(float64(img.Y)*zoom)))
	c := image.Pt(int(float64(center.X)*zoom), int(float64(center.Y)*zoom))
	visible := image.Rectangle{Min: c.Sub(surface.Div(2)), Max: c.Sub(surface.Div(2)).Add(surface)}
	return tileview.Viewport{
		Visible:         visible,
		DrawSurface:     drawSurface,
		ViewportSurface: surface,
		Content:         img,
		Scale:           zoom,
	}
}
