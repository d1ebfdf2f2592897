// Package tileview displays images far larger than the screen by decoding
// only the tiles the current viewport needs.
//
// # Overview
//
// A [Viewer] takes viewport updates from a gesture or scroll collaborator,
// computes which part of the image must be decoded (with hysteresis, so
// small pans do not churn tiles), keeps a live set of tiles covering that
// part and decodes missing tiles on a background worker. Results are handed
// back to the goroutine that owns the Viewer through a mailbox; the owner
// applies them by calling [Viewer.Drain] or running [Viewer.Run].
//
// # Quick Start
//
//	v := tileview.New(tileview.WithListener(tileview.ListenerFuncs{
//	    TileSetChanged: func() { redraw() },
//	}))
//	defer v.Close()
//
//	v.SetImage("photos/huge.jpg")
//	v.Update(tileview.Viewport{
//	    Visible:         image.Rect(0, 0, 800, 600),
//	    DrawSurface:     image.Pt(4000, 3000),
//	    ViewportSurface: image.Pt(800, 600),
//	    Scale:           1,
//	})
//
//	for range v.Notify() {
//	    v.Drain()
//	}
//
// # Coordinate Spaces
//
// Viewport rectangles are in draw-surface space: the space of the preview
// drawable the user pans over. Tiles also carry their rectangle in image
// space, the pixel coordinates of the full image after orientation
// correction.
//
// # Sources
//
// SetImage accepts file paths, file://, http://, https://, s3://bucket/key
// and data: URIs. JPEG, PNG, WebP, BMP and TIFF are supported.
//
// # Concurrency
//
// All Viewer methods must be called from the owning goroutine. Decoding runs
// on a single worker goroutine that starts on demand and exits when idle.
package tileview
