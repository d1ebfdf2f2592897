package tileview

import (
	"image"
	"time"
)

// Listener receives viewer events on the owner goroutine.
type Listener interface {
	// OnTileSetChanged is called after any change to the tile set.
	OnTileSetChanged()

	// OnInitCompleted is called once the image set by SetImage is open.
	OnInitCompleted(info ImageInfo)

	// OnInitError is called when an image cannot be opened. There is no
	// retry; call SetImage again.
	OnInitError(uri string, err error)

	// OnDecodeCompleted is called when a tile becomes resident. buf is owned
	// by the tile and must not be retained.
	OnDecodeCompleted(t Tile, buf *image.RGBA, elapsed time.Duration)

	// OnDecodeError is called when a tile could not be decoded. err is a
	// *DecodeError. The tile has been removed from the set.
	OnDecodeError(t Tile, err error)
}

// NopListener ignores every event. Embed it to implement only some methods.
type NopListener struct{}

func (NopListener) OnTileSetChanged()                                  {}
func (NopListener) OnInitCompleted(ImageInfo)                          {}
func (NopListener) OnInitError(string, error)                          {}
func (NopListener) OnDecodeCompleted(Tile, *image.RGBA, time.Duration) {}
func (NopListener) OnDecodeError(Tile, error)                          {}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	TileSetChanged func()
	InitCompleted  func(info ImageInfo)
	InitError      func(uri string, err error)
	DecodeComplete func(t Tile, buf *image.RGBA, elapsed time.Duration)
	DecodeError    func(t Tile, err error)
}

func (f ListenerFuncs) OnTileSetChanged() {
	if f.TileSetChanged != nil {
		f.TileSetChanged()
	}
}

func (f ListenerFuncs) OnInitCompleted(info ImageInfo) {
	if f.InitCompleted != nil {
		f.InitCompleted(info)
	}
}

func (f ListenerFuncs) OnInitError(uri string, err error) {
	if f.InitError != nil {
		f.InitError(uri, err)
	}
}

func (f ListenerFuncs) OnDecodeCompleted(t Tile, buf *image.RGBA, elapsed time.Duration) {
	if f.DecodeComplete != nil {
		f.DecodeComplete(t, buf, elapsed)
	}
}

func (f ListenerFuncs) OnDecodeError(t Tile, err error) {
	if f.DecodeError != nil {
		f.DecodeError(t, err)
	}
}
