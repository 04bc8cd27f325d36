package globalheap

import (
	"io"
	"slices"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/globalheap/heap/extent"
	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/slab"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/format"
)

// BlockStats counts the blocks of one size. Slabs contribute their
// sub-blocks; plain extents and free runs count as one block of their full
// size.
type BlockStats struct {
	BlockSize  uint64
	Blocks     uint64
	FreeBlocks uint64
}

// PercentFree returns the free share of the blocks, rounded down.
func (b BlockStats) PercentFree() uint64 {
	if b.Blocks == 0 {
		return 0
	}
	return 100 * b.FreeBlocks / b.Blocks
}

// ZoneStats summarizes one zone, or several when aggregated.
type ZoneStats struct {
	ID            uint64
	Group         uint8
	Owner         InstanceID
	Size          uint64 // metazone bytes
	EffectiveSize uint64 // bytes in blocks
	FreeSize      uint64
	Extents       int // allocated extents, slabs included
	Slabs         int
	Blocks        []BlockStats // ordered by block size
}

// UsedSize returns the allocated bytes.
func (z *ZoneStats) UsedSize() uint64 { return z.EffectiveSize - z.FreeSize }

func (z *ZoneStats) addBlocks(size, n, free uint64) {
	i, ok := slices.BinarySearchFunc(z.Blocks, size, func(b BlockStats, size uint64) int {
		switch {
		case b.BlockSize < size:
			return -1
		case b.BlockSize > size:
			return 1
		}
		return 0
	})
	if !ok {
		z.Blocks = slices.Insert(z.Blocks, i, BlockStats{BlockSize: size})
	}
	z.Blocks[i].Blocks += n
	z.Blocks[i].FreeBlocks += free
	z.EffectiveSize += n * size
	z.FreeSize += free * size
}

func (z *ZoneStats) add(other *ZoneStats) {
	z.Size += other.Size
	z.Extents += other.Extents
	z.Slabs += other.Slabs
	for _, b := range other.Blocks {
		z.addBlocks(b.BlockSize, b.Blocks, b.FreeBlocks)
	}
}

// Report describes a heap image.
type Report struct {
	HeapSize     uint64
	MetazoneSize uint64
	NumZones     uint64
	Generation   InstanceID
	Root         Ptr
	Zones        []ZoneStats // per reported zone
	Summary      ZoneStats   // all reported zones together
}

func buildReport(lh *layout.Heap, zones []uint64) (*Report, error) {
	if zones == nil {
		zones = make([]uint64, lh.NumZones())
		for i := range zones {
			zones[i] = uint64(i)
		}
	}
	r := &Report{
		HeapSize:     lh.Size(),
		MetazoneSize: lh.MetazoneSize(),
		NumZones:     lh.NumZones(),
		Generation:   lh.Generation(),
		Root:         lh.Root(),
		Zones:        make([]ZoneStats, 0, len(zones)),
	}
	for _, zid := range zones {
		zs, err := zoneStats(lh, zid)
		if err != nil {
			return nil, err
		}
		r.Zones = append(r.Zones, zs)
		r.Summary.add(&zs)
	}
	return r, nil
}

func zoneStats(lh *layout.Heap, zid uint64) (ZoneStats, error) {
	if zid >= lh.NumZones() {
		return ZoneStats{}, layout.ErrOutOfRange
	}
	nv := lh.Zone(zid)
	zs := ZoneStats{
		ID:    zid,
		Group: nv.InterleaveGroup(),
		Owner: nv.LeaseStatus(),
		Size:  lh.MetazoneSize(),
	}
	var scanErr error
	err := zone.Walk(nv, func(ex extent.Extent, free bool) bool {
		if free {
			zs.addBlocks(ex.Len*format.BlockSize, 1, 1)
			return true
		}
		zs.Extents++
		if nv.BlockHeader(ex.Start).Secondary != format.ExtentSlab {
			zs.addBlocks(ex.Len*format.BlockSize, 1, 0)
			return true
		}
		nvs, err := slab.LoadNVSlab(lh, nv.Block(ex.Start))
		if err != nil {
			scanErr = err
			return false
		}
		zs.Slabs++
		zs.addBlocks(nvs.BlockSize(), nvs.NumBlocks(), nvs.CountFree())
		return true
	})
	if err == nil {
		err = scanErr
	}
	return zs, err
}

// ReportPath reports on the heap at path without opening an instance. A
// nil zones reports every zone.
func ReportPath(path string, zones []uint64) (*Report, error) {
	var r *Report
	err := withImage(path, func(lh *layout.Heap) error {
		var err error
		r, err = buildReport(lh, zones)
		return err
	})
	return r, err
}

// Report reports on the open heap. A nil zones reports every zone.
func (g *GlobalHeap) Report(zones []uint64) (*Report, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	return buildReport(g.layout, zones)
}

// WriteJSON writes the report as one JSON object.
func (r *Report) WriteJSON(w io.Writer) error {
	jw := jwriter.NewWriter()
	obj := jw.Object()
	obj.Name("HeapSize").Float64(float64(r.HeapSize))
	obj.Name("MetazoneSize").Float64(float64(r.MetazoneSize))
	obj.Name("NumZones").Float64(float64(r.NumZones))
	obj.Name("Generation").Float64(float64(r.Generation))
	obj.Name("Root").String(r.Root.String())

	zones := obj.Name("Zones").Array()
	for i := range r.Zones {
		zobj := zones.Object()
		writeZoneJSON(&zobj, &r.Zones[i], true)
		zobj.End()
	}
	zones.End()

	sum := obj.Name("Summary").Object()
	writeZoneJSON(&sum, &r.Summary, false)
	sum.End()
	obj.End()

	if err := jw.Error(); err != nil {
		return err
	}
	_, err := w.Write(jw.Bytes())
	return err
}

func writeZoneJSON(obj *jwriter.ObjectState, z *ZoneStats, perZone bool) {
	if perZone {
		obj.Name("ID").Float64(float64(z.ID))
		obj.Name("Group").Int(int(z.Group))
		obj.Name("Owner").Float64(float64(z.Owner))
	}
	obj.Name("Size").Float64(float64(z.Size))
	obj.Name("EffectiveSize").Float64(float64(z.EffectiveSize))
	obj.Name("UsedSize").Float64(float64(z.UsedSize()))
	obj.Name("FreeSize").Float64(float64(z.FreeSize))
	obj.Name("Extents").Int(z.Extents)
	obj.Name("Slabs").Int(z.Slabs)

	blocks := obj.Name("Blocks").Array()
	for _, b := range z.Blocks {
		bobj := blocks.Object()
		bobj.Name("BlockSize").Float64(float64(b.BlockSize))
		bobj.Name("Blocks").Float64(float64(b.Blocks))
		bobj.Name("FreeBlocks").Float64(float64(b.FreeBlocks))
		bobj.End()
	}
	blocks.End()
}

// WriteText writes the report for people, one section per zone when
// perZone is set, followed by the summary.
func (r *Report) WriteText(w io.Writer, perZone bool) error {
	p := message.NewPrinter(language.English)
	if perZone {
		for i := range r.Zones {
			z := &r.Zones[i]
			if _, err := p.Fprintf(w, "ZONE: %d\n", z.ID); err != nil {
				return err
			}
			if err := writeZoneText(p, w, z, true); err != nil {
				return err
			}
		}
	}
	if _, err := p.Fprintf(w, "SUMMARY\n"); err != nil {
		return err
	}
	return writeZoneText(p, w, &r.Summary, false)
}

func percent(num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	return 100 * num / den
}

type textLine struct {
	format string
	args   []any
}

func writeZoneText(p *message.Printer, w io.Writer, z *ZoneStats, perZone bool) error {
	lines := []textLine{
		{"%-20s%d\n", []any{"Size:", z.Size}},
		{"%-20s%d\n", []any{"Effective size:", z.EffectiveSize}},
		{"%-20s%d (%d%%)\n", []any{"Used size:", z.UsedSize(), percent(z.UsedSize(), z.EffectiveSize)}},
		{"%-20s%d (%d%%)\n", []any{"Free size:", z.FreeSize, percent(z.FreeSize, z.EffectiveSize)}},
	}
	if perZone {
		lines = append(lines,
			textLine{"%-20s%d\n", []any{"Group:", z.Group}},
			textLine{"%-20s%d\n", []any{"Owner:", uint64(z.Owner)}},
		)
	}
	for _, l := range lines {
		if _, err := p.Fprintf(w, l.format, l.args...); err != nil {
			return err
		}
	}

	if _, err := p.Fprintf(w, "\nPer-block stats:\n%-20s%-20s%-20s%-20s\n",
		"Block Size", "#Free Blocks", "%Free Blocks", "#Total Blocks"); err != nil {
		return err
	}
	for _, b := range z.Blocks {
		if _, err := p.Fprintf(w, "%-20d%-20d%-20d%-20d\n",
			b.BlockSize, b.FreeBlocks, b.PercentFree(), b.Blocks); err != nil {
			return err
		}
	}
	_, err := p.Fprintf(w, "\n")
	return err
}
