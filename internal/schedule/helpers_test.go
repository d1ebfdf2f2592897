package schedule

import (
	"image"

	"github.com/gogpu/tileview/internal/region"
	"github.com/gogpu/tileview/internal/tiles"
)

type submitterFunc func(t *tiles.Tile)

func (f submitterFunc) SubmitDecode(t *tiles.Tile) { f(t) }

func regionInput(visible image.Rectangle) region.Input {
	return region.Input{
		Visible: visible,
		Preview: image.Pt(200, 100),
		Image:   image.Pt(200, 100),
		Surface: image.Pt(50, 50),
		Scale:   1,
	}
}
