package extractor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format: expected .xls or .xlsx")
	ErrNoSheets          = errors.New("workbook has no sheets")
)

// ReadGrid decodes the first worksheet of an .xls or .xlsx file.
func ReadGrid(filePath string) (models.Grid, error) {
	ext, err := Extension(filePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", filePath, err)
	}
	defer f.Close()

	return ReadGridFrom(f, ext)
}

// ReadGridFrom decodes a workbook held in r. ext selects the decoder and must
// be ".xls" or ".xlsx".
func ReadGridFrom(r io.ReadSeeker, ext string) (models.Grid, error) {
	switch strings.ToLower(ext) {
	case ".xlsx":
		return readXLSX(r)
	case ".xls":
		return readXLS(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Extension returns the lower-cased extension of a supported statement file.
func Extension(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != ".xls" && ext != ".xlsx" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return ext, nil
}

func readXLSX(r io.Reader) (models.Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("xlsx decode failed: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	// Raw values keep dates as serial numbers instead of locale-formatted text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx read of sheet %q failed: %w", sheets[0], err)
	}

	grid := make(models.Grid, len(rows))
	for i, values := range rows {
		grid[i] = models.TextRow(values...)
	}
	return grid, nil
}

func readXLS(r io.ReadSeeker) (models.Grid, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("xls decode failed: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoSheets
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheets
	}

	// Missing rows are kept as blank rows: blank rows end sections.
	grid := make(models.Grid, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, models.Row{})
			continue
		}
		// LastCol is exclusive for rows read from ROW records and inclusive for
		// rows built from cells alone; one trailing empty value is harmless.
		values := make([]string, row.LastCol()+1)
		for col := row.FirstCol(); col <= row.LastCol(); col++ {
			values[col] = row.Col(col)
		}
		grid = append(grid, models.TextRow(values...))
	}
	return grid, nil
}
