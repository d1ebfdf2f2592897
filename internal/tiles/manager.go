package tiles

import (
	"image"
	"slices"

	"github.com/gogpu/tileview/internal/decoder"
	"github.com/gogpu/tileview/internal/pixbuf"
	"github.com/gogpu/tileview/internal/region"
)

// Submitter schedules the decode of a newly created tile.
type Submitter interface {
	SubmitDecode(t *Tile)
}

// Config configures a Manager.
type Config struct {
	// Engine computes regions from viewport input.
	Engine region.Engine

	// Submitter receives every new tile. Required.
	Submitter Submitter

	// Pool receives the buffers of evicted tiles. Required.
	Pool pixbuf.Recycler

	// Generation returns the live generation key. Required.
	Generation func() int64

	// OnChange is called after every tile set mutation. Optional.
	OnChange func()
}

// Counts summarizes the tile set.
type Counts struct {
	Resident int
	InFlight int
}

// Total returns the number of tiles.
func (c Counts) Total() int { return c.Resident + c.InFlight }

// Manager owns the tile set for one image.
type Manager struct {
	cfg Config

	region    region.Region
	hasRegion bool
	tiles     []*Tile
	handle    *decoder.Handle

	compare func(a, b image.Rectangle) int
}

// NewManager creates a Manager with no image attached.
func NewManager(cfg Config) *Manager {
	if cfg.OnChange == nil {
		cfg.OnChange = func() {}
	}
	return &Manager{cfg: cfg, compare: comparePosition}
}

// SetHandle attaches the decoder handle new tiles decode with. Replacing a
// handle drops every tile.
func (m *Manager) SetHandle(h *decoder.Handle) {
	if h == m.handle {
		return
	}
	if m.handle != nil {
		m.Clean("handle replaced")
	}
	m.handle = h
}

// Handle returns the attached decoder handle, or nil.
func (m *Manager) Handle() *decoder.Handle { return m.handle }

// Update reconciles the tile set with a new viewport. It reports false when
// the region is unchanged or no ready decoder is attached.
func (m *Manager) Update(in region.Input) bool {
	if !m.handle.Ready() {
		return false
	}
	var prev *region.Region
	if m.hasRegion {
		prev = &m.region
	}
	r, ok := m.cfg.Engine.Compute(prev, in)
	if !ok {
		return false
	}
	remapped := prev != nil && (prev.Preview != r.Preview || prev.Image != r.Image)
	m.region, m.hasRegion = r, true

	evicted := m.evict(r, remapped)
	added := m.fill()
	if evicted+added > 0 {
		m.cfg.OnChange()
	}
	slogger().Debug("tiles updated",
		"visible", r.Visible, "decode", r.Decode, "sample", r.Sample,
		"evicted", evicted, "added", added, "tiles", len(m.tiles))
	return true
}

// Refill requests tiles for any gap in the current decode rectangle without
// recomputing the region. It returns the number of tiles created.
func (m *Manager) Refill() int {
	if !m.hasRegion || !m.handle.Ready() {
		return 0
	}
	added := m.fill()
	if added > 0 {
		m.cfg.OnChange()
	}
	return added
}

// evict drops tiles that are not contained in the decode rectangle or were
// created at another scale. When remapped is set the preview-to-image
// mapping changed and every tile goes.
func (m *Manager) evict(r region.Region, remapped bool) int {
	n := len(m.tiles)
	m.tiles = slices.DeleteFunc(m.tiles, func(t *Tile) bool {
		if !remapped && t.Scale == r.Scale && t.Draw.In(r.Decode) {
			return false
		}
		m.release(t)
		return true
	})
	return n - len(m.tiles)
}

// fill creates and submits tiles for the uncovered parts of the decode
// rectangle.
func (m *Manager) fill() int {
	r := m.region
	sortTiles(m.tiles, m.compare)

	draws := make([]image.Rectangle, len(m.tiles))
	for i, t := range m.tiles {
		draws[i] = t.Draw
	}
	gaps := FindEmptyRegions(r.Decode, draws)
	if len(gaps) == 0 {
		return 0
	}

	key := m.cfg.Generation()
	added := 0
	for _, gap := range gaps {
		for _, cell := range splitCells(gap, r.Cell) {
			if slices.Contains(draws, cell) {
				continue
			}
			src := region.MapToSource(cell, r.Preview, r.Image)
			if src.Empty() {
				continue
			}
			t := &Tile{
				Draw:   cell,
				Src:    src,
				Sample: r.Sample,
				Scale:  r.Scale,
				Key:    key,
				Handle: m.handle,
			}
			m.tiles = append(m.tiles, t)
			draws = append(draws, cell)
			added++
			m.cfg.Submitter.SubmitDecode(t)
		}
	}
	return added
}

// release invalidates t and returns its buffer to the pool.
func (m *Manager) release(t *Tile) {
	t.invalidate()
	if t.Buffer != nil {
		m.cfg.Pool.Return(t.Buffer)
		t.Buffer = nil
	}
	t.Handle = nil
}

// DecodeCompleted attaches buf to t. It reports false when t is no longer
// part of the set or already resident; the caller keeps ownership of buf
// in that case.
func (m *Manager) DecodeCompleted(t *Tile, buf *image.RGBA) bool {
	if buf == nil || !t.InFlight() || !slices.Contains(m.tiles, t) {
		return false
	}
	t.Buffer = buf
	t.Handle = nil
	m.cfg.OnChange()
	return true
}

// DecodeError removes t from the set. Its area becomes a gap again.
func (m *Manager) DecodeError(t *Tile) bool {
	i := slices.Index(m.tiles, t)
	if i < 0 {
		return false
	}
	m.tiles = slices.Delete(m.tiles, i, i+1)
	m.release(t)
	m.cfg.OnChange()
	return true
}

// CancelInFlight drops every tile still waiting for its buffer.
func (m *Manager) CancelInFlight() int {
	n := len(m.tiles)
	m.tiles = slices.DeleteFunc(m.tiles, func(t *Tile) bool {
		if !t.InFlight() {
			return false
		}
		m.release(t)
		return true
	})
	dropped := n - len(m.tiles)
	if dropped > 0 {
		m.cfg.OnChange()
	}
	return dropped
}

// Clean evicts every tile and forgets the region. The handle stays attached.
func (m *Manager) Clean(why string) {
	n := len(m.tiles)
	for _, t := range m.tiles {
		m.release(t)
	}
	clear(m.tiles)
	m.tiles = m.tiles[:0]
	m.region, m.hasRegion = region.Region{}, false
	if n > 0 {
		m.cfg.OnChange()
	}
	slogger().Debug("tiles cleaned", "why", why, "evicted", n)
}

// Recycle cleans the set and detaches the handle. The handle itself is not
// recycled; it belongs to the caller.
func (m *Manager) Recycle(why string) {
	m.Clean(why)
	m.handle = nil
}

// Tiles returns the live tiles in drawing order. The slice is shared and
// valid until the next mutation.
func (m *Manager) Tiles() []*Tile { return m.tiles }

// Region returns the current region and whether one has been computed.
func (m *Manager) Region() (region.Region, bool) { return m.region, m.hasRegion }

// Counts returns the number of resident and in-flight tiles.
func (m *Manager) Counts() Counts {
	var c Counts
	for _, t := range m.tiles {
		if t.InFlight() {
			c.InFlight++
		} else {
			c.Resident++
		}
	}
	return c
}
