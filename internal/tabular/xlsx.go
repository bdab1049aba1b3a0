package tabular

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions picks a worksheet. SheetName wins over SheetIndex. SkipRows
// rows above the header are ignored.
type XLSXOptions struct {
	SheetIndex int
	SheetName  string
	SkipRows   int
}

// ReadXLSX returns the data rows of one worksheet keyed by its header row.
func ReadXLSX(path string, opts XLSXOptions) ([]Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}
	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var (
		k   keyer
		out []Record
	)
	for _, row := range sheet.Rows[min(opts.SkipRows, len(sheet.Rows)):] {
		cells := make([]string, 0, len(row.Cells))
		for _, c := range row.Cells {
			cells = append(cells, c.String())
		}
		if rec, ok := k.next(cells); ok {
			out = append(out, rec)
		}
	}
	if !k.sawHeader() {
		return nil, eris.Errorf("xlsx: sheet %q has no header row", sheet.Name)
	}
	return out, nil
}

func pickSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		if s, ok := f.Sheet[opts.SheetName]; ok {
			return s, nil
		}
		return nil, eris.Errorf("xlsx: no sheet named %q", opts.SheetName)
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet %d of %d", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
