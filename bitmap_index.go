package segment

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/segmentio/encoding/thrift"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

// BitmapIndexReader holds the inverted index of one column: the sorted
// value dictionary and, per value, the roaring bitmap of the ordinals
// holding it.
type BitmapIndexReader struct {
	block    ReadableBlock
	meta     *format.IndexMeta
	typeInfo *TypeInfo

	keys    [][]byte
	bitmaps [][]byte
}

// NewBitmapIndexReader constructs an unloaded bitmap index reader.
func NewBitmapIndexReader(block ReadableBlock, meta *format.IndexMeta, typeInfo *TypeInfo) *BitmapIndexReader {
	return &BitmapIndexReader{block: block, meta: meta, typeInfo: typeInfo}
}

// Load reads and parses the index page.
func (r *BitmapIndexReader) Load(codec compress.Codec, cache *PageCache, usePageCache, keptInMemory bool) error {
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
		return fmt.Errorf("bitmap index of %s points at a %s: %w",
			r.block.Path(), footer.Type, ErrCorruption)
	}
	page := new(format.BitmapIndexPage)
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), body, page); err != nil {
		return fmt.Errorf("parsing bitmap index of %s: %w (%s)", r.block.Path(), ErrCorruption, err)
	}
	if len(page.Keys) != len(page.Bitmaps) {
		return fmt.Errorf("bitmap index of %s has %d keys for %d bitmaps: %w",
			r.block.Path(), len(page.Keys), len(page.Bitmaps), ErrCorruption)
	}
	r.keys = page.Keys
	r.bitmaps = page.Bitmaps
	return nil
}

// BitmapCount returns the number of distinct indexed values.
func (r *BitmapIndexReader) BitmapCount() int { return len(r.keys) }

// NewIterator returns a cursor over the value dictionary.
func (r *BitmapIndexReader) NewIterator() *BitmapIndexIterator {
	return &BitmapIndexIterator{reader: r}
}

// BitmapIndexIterator walks the sorted value dictionary of a bitmap index
// and materializes ordinal bitmaps on demand.
type BitmapIndexIterator struct {
	reader  *BitmapIndexReader
	current int
}

// SeekDictionary positions the iterator on the first dictionary entry at
// or after value, reporting whether the value itself is present.
func (it *BitmapIndexIterator) SeekDictionary(value []byte) (exact bool, err error) {
	r := it.reader
	i := sort.Search(len(r.keys), func(i int) bool {
		return r.typeInfo.Compare(r.keys[i], value) >= 0
	})
	it.current = i
	if i == len(r.keys) {
		return false, fmt.Errorf("value beyond the bitmap dictionary: %w", ErrNotFound)
	}
	return r.typeInfo.Compare(r.keys[i], value) == 0, nil
}

// CurrentOrdinal returns the dictionary position of the iterator.
func (it *BitmapIndexIterator) CurrentOrdinal() int { return it.current }

// ReadBitmap returns the ordinal bitmap of the dictionary entry at the
// given position.
func (it *BitmapIndexIterator) ReadBitmap(entry int) (*roaring.Bitmap, error) {
	r := it.reader
	if entry < 0 || entry >= len(r.bitmaps) {
		return nil, fmt.Errorf("bitmap entry %d of %d: %w", entry, len(r.bitmaps), ErrNotFound)
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(r.bitmaps[entry]); err != nil {
		return nil, fmt.Errorf("parsing bitmap %d of %s: %w (%s)",
			entry, r.block.Path(), ErrCorruption, err)
	}
	return bm, nil
}

// ReadUnionBitmap returns the union of the ordinal bitmaps of the
// dictionary entries in [from, to).
func (it *BitmapIndexIterator) ReadUnionBitmap(from, to int) (*roaring.Bitmap, error) {
	out := roaring.New()
	for i := from; i < to; i++ {
		bm, err := it.ReadBitmap(i)
		if err != nil {
			return nil, err
		}
		out.Or(bm)
	}
	return out, nil
}
