package segment

import (
	"fmt"

	"github.com/segmentio/encoding/thrift"
	"github.com/vesseldb/segment-go/bloom"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
)

// BloomFilterIndexReader locates the per-page bloom filters of one column.
// The filters themselves live in their own pages and are read lazily, one
// probe at a time.
type BloomFilterIndexReader struct {
	block    ReadableBlock
	meta     *format.IndexMeta
	typeInfo *TypeInfo
	codec    compress.Codec

	pages        []format.PagePointer
	cache        *PageCache
	usePageCache bool
	keptInMemory bool
}

// NewBloomFilterIndexReader constructs an unloaded bloom filter index
// reader.
func NewBloomFilterIndexReader(block ReadableBlock, meta *format.IndexMeta, typeInfo *TypeInfo) *BloomFilterIndexReader {
	return &BloomFilterIndexReader{block: block, meta: meta, typeInfo: typeInfo}
}

// Load reads and parses the index page.
func (r *BloomFilterIndexReader) Load(codec compress.Codec, cache *PageCache, usePageCache, keptInMemory bool) error {
	r.codec = codec
	r.cache = cache
	r.usePageCache = usePageCache
	r.keptInMemory = keptInMemory
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
		return fmt.Errorf("bloom filter index of %s points at a %s: %w",
			r.block.Path(), footer.Type, ErrCorruption)
	}
	page := new(format.BloomFilterIndexPage)
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), body, page); err != nil {
		return fmt.Errorf("parsing bloom filter index of %s: %w (%s)", r.block.Path(), ErrCorruption, err)
	}
	r.pages = page.Pages
	return nil
}

// NewIterator returns a cursor reading individual page filters.
func (r *BloomFilterIndexReader) NewIterator() *BloomFilterIndexIterator {
	return &BloomFilterIndexIterator{reader: r}
}

// BloomFilterIndexIterator reads the bloom filter of individual data
// pages.
type BloomFilterIndexIterator struct {
	reader *BloomFilterIndexReader
}

// ReadBloomFilter returns the filter of the data page at pageIndex.
func (it *BloomFilterIndexIterator) ReadBloomFilter(pageIndex int, stats *IteratorStats) (*BloomFilter, error) {
	r := it.reader
	if pageIndex < 0 || pageIndex >= len(r.pages) {
		return nil, fmt.Errorf("no bloom filter for page %d of %d: %w",
			pageIndex, len(r.pages), ErrCorruption)
	}
	handle, body, footer, err := ReadAndDecompressPage(PageReadOptions{
		Block:          r.block,
		Pointer:        r.pages[pageIndex],
		Codec:          r.codec,
		Stats:          stats,
		VerifyChecksum: true,
		UsePageCache:   r.usePageCache,
		KeptInMemory:   r.keptInMemory,
		Type:           format.IndexPage,
		Cache:          r.cache,
	})
	if err != nil {
		return nil, err
	}
	if footer.Type != format.IndexPage {
		return nil, fmt.Errorf("bloom filter page %d of %s is a %s: %w",
			pageIndex, r.block.Path(), footer.Type, ErrCorruption)
	}
	if len(body)%bloom.BlockSize != 0 {
		return nil, fmt.Errorf("bloom filter page of %d bytes in %s is not block aligned: %w",
			len(body), r.block.Path(), ErrCorruption)
	}
	return &BloomFilter{
		handle: handle,
		filter: bloom.MakeSplitBlockFilter(body),
	}, nil
}

// BloomFilter is one page's split block bloom filter, probed with the
// canonical cell bytes of a value.
type BloomFilter struct {
	handle PageHandle
	filter bloom.SplitBlockFilter
	hash   bloom.XXH64
}

// MayContain reports whether the filter may contain the value.
func (f *BloomFilter) MayContain(key []byte) bool {
	return f.filter.Check(f.hash.Sum64(key))
}

var (
	_ BloomFilterProbe = (*BloomFilter)(nil)
)
