package segment

import (
	"fmt"

	"github.com/segmentio/encoding/thrift"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

// ZoneMapIndexReader holds the per-page zone maps of one column.
type ZoneMapIndexReader struct {
	block ReadableBlock
	meta  *format.IndexMeta

	zoneMaps []format.ZoneMap
}

// NewZoneMapIndexReader constructs an unloaded zone map index reader.
func NewZoneMapIndexReader(block ReadableBlock, meta *format.IndexMeta) *ZoneMapIndexReader {
	return &ZoneMapIndexReader{block: block, meta: meta}
}

// Load reads and parses the index page.
func (r *ZoneMapIndexReader) Load(codec compress.Codec, cache *PageCache, usePageCache, keptInMemory bool) error {
	_, body, footer, err := ReadAndDecompressPage(PageReadOptions{
		Block:          r.block,
		Pointer:        r.meta.Page,
		Codec:          codec,
		VerifyChecksum: true,
		UsePageCache:   usePageCache,
		KeptInMemory:   keptInMemory,
		Type:           format.IndexPage,
		Cache:          cache,
	})
	if err != nil {
		return err
	}
	if footer.Type != format.IndexPage {
		return fmt.Errorf("zone map index of %s points at a %s: %w",
			r.block.Path(), footer.Type, ErrCorruption)
	}
	page := new(format.ZoneMapIndexPage)
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), body, page); err != nil {
		return fmt.Errorf("parsing zone map index of %s: %w (%s)", r.block.Path(), ErrCorruption, err)
	}
	r.zoneMaps = page.ZoneMaps
	return nil
}

// NumPages returns the number of data pages covered by the index.
func (r *ZoneMapIndexReader) NumPages() int { return len(r.zoneMaps) }

// PageZoneMaps returns the per-page zone maps, in page order.
func (r *ZoneMapIndexReader) PageZoneMaps() []format.ZoneMap { return r.zoneMaps }
