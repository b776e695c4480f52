package segment

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/google/uuid"
	"github.com/segmentio/encoding/thrift"
	"github.com/vesseldb/segment-go/compress"
	"github.com/vesseldb/segment-go/format"
	"github.com/vesseldb/segment-go/internal/debug"
)

// ReadableBlock is the handle to the raw bytes of one segment file,
// provided by the block storage layer. Blocks are identified by uuid the
// way backend blocks are keyed in object storage; the id doubles as the
// page cache key.
type ReadableBlock interface {
	io.ReaderAt

	// Path returns the file path of the block, used in error messages.
	Path() string

	// ID returns the stable identity of the block.
	ID() uuid.UUID
}

// PageReadOptions carries everything ReadAndDecompressPage needs to read
// one page.
type PageReadOptions struct {
	Block          ReadableBlock
	Pointer        format.PagePointer
	Codec          compress.Codec // nil when the column is uncompressed
	Stats          *IteratorStats
	VerifyChecksum bool
	UsePageCache   bool
	KeptInMemory   bool
	Type           format.PageType
	Cache          *PageCache // nil selects the default cache
}

// PageHandle owns the decoded body of one page. All decoders over the page
// borrow into the handle's buffer and must not outlive it.
type PageHandle struct {
	data []byte
}

// Data returns the page body held by the handle.
func (h PageHandle) Data() []byte { return h.data }

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ReadAndDecompressPage reads one page, verifies its checksum, parses its
// footer and decompresses its body. The returned body aliases the handle's
// buffer.
//
// The on-disk page envelope is:
//
//	[body][thrift footer][footer size uint32][crc32c uint32]
func ReadAndDecompressPage(opts PageReadOptions) (PageHandle, []byte, *format.PageFooter, error) {
	cache := opts.Cache
	if cache == nil {
		cache = DefaultPageCache()
	}
	key := pageCacheKey{block: opts.Block.ID(), offset: opts.Pointer.Offset}
	if opts.UsePageCache {
		if body, footer, ok := cache.Lookup(key); ok {
			if opts.Stats != nil {
				opts.Stats.CachedPagesRead++
			}
			debug.Printf("page cache hit %s@%d", opts.Block.Path(), opts.Pointer.Offset)
			return PageHandle{data: body}, body, footer, nil
		}
	}

	if opts.Pointer.Size < 8 {
		return PageHandle{}, nil, nil, fmt.Errorf(
			"bad page in %s: %d bytes cannot hold a page trailer: %w",
			opts.Block.Path(), opts.Pointer.Size, ErrCorruption)
	}
	raw := make([]byte, opts.Pointer.Size)
	if _, err := opts.Block.ReadAt(raw, opts.Pointer.Offset); err != nil {
		return PageHandle{}, nil, nil, fmt.Errorf("reading page at %d in %s: %w",
			opts.Pointer.Offset, opts.Block.Path(), err)
	}
	if opts.Stats != nil {
		opts.Stats.PagesRead++
		opts.Stats.BytesRead += int64(len(raw))
	}

	if opts.VerifyChecksum {
		expected := leUint32(raw[len(raw)-4:])
		if actual := crc32.Checksum(raw[:len(raw)-4], castagnoli); actual != expected {
			return PageHandle{}, nil, nil, fmt.Errorf(
				"bad page in %s: checksum mismatch at %d, expected %x actual %x: %w",
				opts.Block.Path(), opts.Pointer.Offset, expected, actual, ErrCorruption)
		}
	}

	footerSize := int(leUint32(raw[len(raw)-8 : len(raw)-4]))
	if footerSize+8 > len(raw) {
		return PageHandle{}, nil, nil, fmt.Errorf(
			"bad page in %s: footer of %d bytes overflows the page: %w",
			opts.Block.Path(), footerSize, ErrCorruption)
	}
	footerStart := len(raw) - 8 - footerSize
	footer := new(format.PageFooter)
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), raw[footerStart:len(raw)-8], footer); err != nil {
		return PageHandle{}, nil, nil, fmt.Errorf("bad page in %s: parsing footer: %w (%s)",
			opts.Block.Path(), ErrCorruption, err)
	}

	body := raw[:footerStart]
	if int(footer.UncompressedSize) != len(body) {
		if opts.Codec == nil {
			return PageHandle{}, nil, nil, fmt.Errorf(
				"bad page in %s: body of %d bytes, footer says %d and no codec configured: %w",
				opts.Block.Path(), len(body), footer.UncompressedSize, ErrCorruption)
		}
		decoded, err := opts.Codec.Decode(make([]byte, 0, footer.UncompressedSize), body)
		if err != nil {
			return PageHandle{}, nil, nil, fmt.Errorf("decompressing page in %s: %w",
				opts.Block.Path(), err)
		}
		if len(decoded) != int(footer.UncompressedSize) {
			return PageHandle{}, nil, nil, fmt.Errorf(
				"bad page in %s: decompressed %d bytes, footer says %d: %w",
				opts.Block.Path(), len(decoded), footer.UncompressedSize, ErrCorruption)
		}
		body = decoded
	}

	if opts.UsePageCache {
		cache.Insert(key, body, footer, opts.KeptInMemory)
	}
	debug.Printf("read %s page %s@%d: %d bytes", footer.Type, opts.Block.Path(),
		opts.Pointer.Offset, len(body))
	return PageHandle{data: body}, body, footer, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
