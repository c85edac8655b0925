// Package zonemap turns captured screen frames into per-zone strip colors.
//
// A ZoneMap is precomputed once per geometry: four border bands are cut
// into bins and every pixel offset inside a band is assigned to the zone
// the strip places at that bin. Reducing a frame is then a straight
// average over each zone's offsets.
package zonemap

import (
	"fmt"
	"math"

	"github.com/smazurov/ambilight/internal/types"
)

// Band identifies one edge of the screen.
type Band int

// Border bands.
const (
	BandRight Band = iota
	BandTop
	BandLeft
	BandBottom
	bandCount
)

var bandNames = [bandCount]string{"right", "top", "left", "bottom"}

func (b Band) String() string {
	if b >= 0 && b < bandCount {
		return bandNames[b]
	}
	return fmt.Sprintf("band(%d)", int(b))
}

// segment places one band on the strip: its order among the four edges as
// the strip runs from the first zone, and whether the strip runs against
// the bin position (bins count top-down on vertical bands and left-right
// on horizontal bands).
type segment struct {
	order   int
	reverse bool
}

// rotation is the corner table. Reading a row in order-of-segment gives the
// physical path of the strip, e.g. bottom-right starts at the bottom of the
// right edge, climbs to the top, runs right-to-left along the top, down the
// left edge and back along the bottom.
var rotation = [4][bandCount]segment{
	types.CornerBottomRight: {
		BandRight:  {order: 0, reverse: true},
		BandTop:    {order: 1, reverse: true},
		BandLeft:   {order: 2, reverse: false},
		BandBottom: {order: 3, reverse: false},
	},
	types.CornerTopRight: {
		BandRight:  {order: 0, reverse: false},
		BandBottom: {order: 1, reverse: true},
		BandLeft:   {order: 2, reverse: true},
		BandTop:    {order: 3, reverse: false},
	},
	types.CornerTopLeft: {
		BandLeft:   {order: 0, reverse: false},
		BandBottom: {order: 1, reverse: false},
		BandRight:  {order: 2, reverse: true},
		BandTop:    {order: 3, reverse: true},
	},
	types.CornerBottomLeft: {
		BandLeft:   {order: 0, reverse: true},
		BandTop:    {order: 1, reverse: false},
		BandRight:  {order: 2, reverse: false},
		BandBottom: {order: 3, reverse: true},
	},
}

// ZoneTable is the explicit corner × band × bin-position lookup for one
// set of LED counts.
type ZoneTable [bandCount][]int

// Lookup returns the zone id for the bin at position pos of band b.
func (t ZoneTable) Lookup(b Band, pos int) int {
	return t[b][pos]
}

// BuildZoneTable expands the rotation table for the given per-edge bin
// counts. vertical and horizontal are the bins per vertical and horizontal
// edge respectively.
func BuildZoneTable(corner types.Corner, vertical, horizontal int) ZoneTable {
	bins := [bandCount]int{
		BandRight:  vertical,
		BandLeft:   vertical,
		BandTop:    horizontal,
		BandBottom: horizontal,
	}

	// start id of each band: sum of the lengths of the bands the strip
	// passes before it
	var start [bandCount]int
	for b := range bandCount {
		for other := range bandCount {
			if rotation[corner][other].order < rotation[corner][b].order {
				start[b] += bins[other]
			}
		}
	}

	var table ZoneTable
	for b := range bandCount {
		seg := rotation[corner][b]
		table[b] = make([]int, bins[b])
		for pos := range bins[b] {
			if seg.reverse {
				table[b][pos] = start[b] + bins[b] - 1 - pos
			} else {
				table[b][pos] = start[b] + pos
			}
		}
	}
	return table
}

// ZoneMap assigns pixel byte offsets to zones. It is immutable once built.
type ZoneMap struct {
	geometry Geometry
	zones    [][]int
	table    ZoneTable
}

// Geometry returns the geometry the map was built for.
func (m *ZoneMap) Geometry() Geometry {
	return m.geometry
}

// ZoneCount returns the number of zones, including empty ones.
func (m *ZoneMap) ZoneCount() int {
	return len(m.zones)
}

// Offsets returns the pixel byte offsets of zone id. The slice must not be
// modified.
func (m *ZoneMap) Offsets(id int) []int {
	return m.zones[id]
}

// Table returns the zone lookup the map was built with.
func (m *ZoneMap) Table() ZoneTable {
	return m.table
}

// span is a half-open pixel interval.
type span struct{ lo, hi int }

func clampSpan(lo, hi, limit int) span {
	lo = max(lo, 0)
	hi = min(hi, limit)
	if hi < lo {
		hi = lo
	}
	return span{lo, hi}
}

func (s span) contains(v int) bool {
	return v >= s.lo && v < s.hi
}

// bin maps a coordinate in [0,length) onto one of n equal bins. Boundaries
// are half-open: bin i holds i*length/n <= v < (i+1)*length/n.
func bin(v, length, n int) int {
	return v * n / length
}

// Build computes the zone map for g. It panics when g violates the zone
// count precondition; use Validate to check configuration first.
//
// The left and right bands are thickness pixels wide, inset by margin from
// their edge and run the full screen height. The top and bottom bands are
// thickness pixels high, inset by margin and run the full width, except
// for the columns already owned by a vertical band, so every scanned pixel
// lands in exactly one zone.
func Build(g Geometry) *ZoneMap {
	checkBuildable(g)

	w, h := g.ScreenWidth, g.ScreenHeight
	vBins := g.VerticalLeds / 2
	hBins := g.HorizontalLeds / 2
	table := BuildZoneTable(g.Corner, vBins, hBins)

	zones := make([][]int, g.ZoneCount())
	for i := range zones {
		zones[i] = []int{}
	}

	right := clampSpan(w-g.Margin-g.Thickness, w-g.Margin, w)
	left := clampSpan(g.Margin, g.Margin+g.Thickness, w)
	top := clampSpan(g.Margin, g.Margin+g.Thickness, h)
	bottom := clampSpan(h-g.Margin-g.Thickness, h-g.Margin, h)

	offset := func(x, y int) int {
		return (y*w + x) * BytesPerPixel
	}

	for y := range h {
		b := bin(y, h, vBins)
		for x := right.lo; x < right.hi; x++ {
			id := table.Lookup(BandRight, b)
			zones[id] = append(zones[id], offset(x, y))
		}
		for x := left.lo; x < left.hi; x++ {
			if right.contains(x) {
				continue
			}
			id := table.Lookup(BandLeft, b)
			zones[id] = append(zones[id], offset(x, y))
		}
	}

	for x := range w {
		if left.contains(x) || right.contains(x) {
			continue
		}
		b := bin(x, w, hBins)
		for y := top.lo; y < top.hi; y++ {
			id := table.Lookup(BandTop, b)
			zones[id] = append(zones[id], offset(x, y))
		}
		for y := bottom.lo; y < bottom.hi; y++ {
			if top.contains(y) {
				continue
			}
			id := table.Lookup(BandBottom, b)
			zones[id] = append(zones[id], offset(x, y))
		}
	}

	return &ZoneMap{geometry: g, zones: zones, table: table}
}

// Gamma compresses an averaged channel onto the 7-bit range the
// microcontroller expects: round(127 * (c/255)^2).
func Gamma(c uint8) uint8 {
	v := math.Round(127 * math.Pow(float64(c)/255, 2))
	return uint8(min(max(v, 0), 127))
}

// ReduceFrame averages each zone's pixels in frame (BGRA, row-major) and
// returns the gamma corrected colors in ascending zone order. Zones
// without pixels come out black.
func ReduceFrame(m *ZoneMap, frame []byte) ([]types.LedZone, error) {
	if need := m.geometry.FrameSize(); len(frame) < need {
		return nil, fmt.Errorf("%w: frame holds %d bytes, geometry %dx%d needs %d",
			ErrShortFrame, len(frame), m.geometry.ScreenWidth, m.geometry.ScreenHeight, need)
	}

	out := make([]types.LedZone, len(m.zones))
	for id, offsets := range m.zones {
		out[id].ID = id
		if len(offsets) == 0 {
			continue
		}

		var r, g, b int
		for _, off := range offsets {
			b += int(frame[off])
			g += int(frame[off+1])
			r += int(frame[off+2])
		}
		n := len(offsets)
		out[id].Color = types.Color{
			R: Gamma(uint8(r / n)),
			G: Gamma(uint8(g / n)),
			B: Gamma(uint8(b / n)),
		}
	}
	return out, nil
}
