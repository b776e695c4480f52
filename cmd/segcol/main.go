// Command segcol inspects the columns of segment files: their metadata,
// their page layout and zone maps, and their decoded values.
//
// The column metadata is read from a thrift compact side file as produced
// by the segment writer tooling:
//
//	segcol meta  -meta column.meta
//	segcol pages -meta column.meta -data segment.bin
//	segcol scan  -meta column.meta -data segment.bin -limit 20
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/segmentio/encoding/thrift"

	segment "github.com/vesseldb/segment-go"
	"github.com/vesseldb/segment-go/format"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "meta":
		err = metaCommand(args)
	case "pages":
		err = pagesCommand(args)
	case "scan":
		err = scanCommand(args)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "segcol:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: segcol {meta|pages|scan} [flags]")
	os.Exit(2)
}

func loadMeta(path string) (*format.ColumnMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta := new(format.ColumnMeta)
	if err := thrift.Unmarshal(new(thrift.CompactProtocol), raw, meta); err != nil {
		return nil, fmt.Errorf("parsing column meta %s: %w", path, err)
	}
	return meta, nil
}

// fileBlock adapts an os.File to the segment.ReadableBlock contract. The
// block id is derived from the path so page cache keys are stable across
// runs.
type fileBlock struct {
	file *os.File
	path string
	id   uuid.UUID
}

func openBlock(path string) (*fileBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileBlock{
		file: f,
		path: path,
		id:   uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)),
	}, nil
}

func (b *fileBlock) ReadAt(p []byte, off int64) (int, error) { return b.file.ReadAt(p, off) }
func (b *fileBlock) Path() string                            { return b.path }
func (b *fileBlock) ID() uuid.UUID                           { return b.id }

func metaCommand(args []string) error {
	flags := flag.NewFlagSet("meta", flag.ExitOnError)
	metaPath := flags.String("meta", "", "column meta side file")
	flags.Parse(args)
	meta, err := loadMeta(*metaPath)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Column", "Type", "Encoding", "Compression", "Nullable", "Rows", "Indexes"})
	appendMeta(table, meta)
	table.Render()
	return nil
}

func appendMeta(table *tablewriter.Table, meta *format.ColumnMeta) {
	indexes := ""
	for i, idx := range meta.Indexes {
		if i > 0 {
			indexes += ","
		}
		indexes += idx.Type.String()
	}
	table.Append([]string{
		strconv.Itoa(int(meta.ColumnID)),
		meta.Type.String(),
		meta.Encoding.String(),
		meta.Compression.String(),
		strconv.FormatBool(meta.IsNullable),
		strconv.FormatInt(meta.NumRows, 10),
		indexes,
	})
	for i := range meta.Children {
		appendMeta(table, &meta.Children[i])
	}
}

func pagesCommand(args []string) error {
	flags := flag.NewFlagSet("pages", flag.ExitOnError)
	metaPath := flags.String("meta", "", "column meta side file")
	dataPath := flags.String("data", "", "segment file")
	flags.Parse(args)
	meta, err := loadMeta(*metaPath)
	if err != nil {
		return err
	}
	block, err := openBlock(*dataPath)
	if err != nil {
		return err
	}
	defer block.file.Close()

	reader, err := segment.NewColumnReader(segment.ColumnReaderOptions{VerifyChecksum: true}, *meta, meta.NumRows, block)
	if err != nil {
		return err
	}
	zoneMaps, err := reader.PageZoneMaps()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Page", "Offset", "Size", "First", "Last", "Zone Map"})

	var it segment.OrdinalPageIndexIterator
	if err := reader.SeekToFirst(&it); err != nil {
		return err
	}
	for ; it.Valid(); it.Next() {
		zone := ""
		if i := int(it.PageIndex()); i < len(zoneMaps) {
			zone = renderZoneMap(&zoneMaps[i])
		}
		table.Append([]string{
			strconv.Itoa(int(it.PageIndex())),
			strconv.FormatInt(it.Page().Offset, 10),
			strconv.Itoa(int(it.Page().Size)),
			strconv.FormatInt(it.FirstOrdinal(), 10),
			strconv.FormatInt(it.LastOrdinal(), 10),
			zone,
		})
	}
	table.Render()
	return nil
}

func renderZoneMap(zm *format.ZoneMap) string {
	switch {
	case zm.PassAll:
		return "pass all"
	case !zm.HasNotNull && !zm.HasNull:
		return "empty"
	case !zm.HasNotNull:
		return "all null"
	default:
		s := fmt.Sprintf("[%s..%s]", zm.Min, zm.Max)
		if zm.HasNull {
			s += " +null"
		}
		return s
	}
}

func scanCommand(args []string) error {
	flags := flag.NewFlagSet("scan", flag.ExitOnError)
	metaPath := flags.String("meta", "", "column meta side file")
	dataPath := flags.String("data", "", "segment file")
	limit := flags.Int("limit", 100, "maximum rows to print, 0 for all")
	flags.Parse(args)
	meta, err := loadMeta(*metaPath)
	if err != nil {
		return err
	}
	if meta.Type == format.TypeArray {
		return fmt.Errorf("scan supports scalar columns only")
	}
	block, err := openBlock(*dataPath)
	if err != nil {
		return err
	}
	defer block.file.Close()

	reader, err := segment.NewColumnReader(segment.ColumnReaderOptions{VerifyChecksum: true}, *meta, meta.NumRows, block)
	if err != nil {
		return err
	}
	it, err := reader.NewIterator()
	if err != nil {
		return err
	}
	stats := new(segment.IteratorStats)
	if err := it.Init(&segment.ColumnIteratorOptions{Block: block, Stats: stats, UsePageCache: true}); err != nil {
		return err
	}
	if err := it.SeekToFirst(); err != nil {
		return err
	}

	typeInfo := reader.TypeInfo()
	printed := int64(0)
	for {
		const batch = 1024
		blockDst := segment.NewColumnBlock(typeInfo, meta.IsNullable, batch)
		view := segment.NewBlockView(blockDst, 0)
		n := batch
		hasNull := false
		if err := it.NextBatch(&n, view, &hasNull); err != nil {
			return err
		}
		if n == 0 {
			break
		}
		for i := 0; i < n; i++ {
			if *limit > 0 && printed >= int64(*limit) {
				break
			}
			cell := blockDst.CellAt(i)
			if cell.Null {
				fmt.Println("NULL")
			} else {
				fmt.Println(typeInfo.ToString(cell.Bytes))
			}
			printed++
		}
		if *limit > 0 && printed >= int64(*limit) {
			break
		}
	}
	fmt.Fprintf(os.Stderr, "rows=%d pages=%d cached=%d bytes=%d\n",
		stats.RowsRead, stats.PagesRead, stats.CachedPagesRead, stats.BytesRead)
	return nil
}
