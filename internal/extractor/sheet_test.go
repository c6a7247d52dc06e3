package extractor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

func buildWorkbook(t *testing.T, cells map[string]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for ref, v := range cells {
		if err := f.SetCellValue("Sheet1", ref, v); err != nil {
			t.Fatalf("SetCellValue(%s): %v", ref, err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf.Bytes()
}

func TestReadGridFrom_XLSX(t *testing.T) {
	data := buildWorkbook(t, map[string]interface{}{
		"A1": "Движение денежных средств",
		"A3": "Дата",
		"B3": "Сумма",
		"A4": "31.12.2023",
		"B4": 1500.25,
	})

	grid, err := ReadGridFrom(bytes.NewReader(data), ".XLSX")
	if err != nil {
		t.Fatalf("ReadGridFrom: %v", err)
	}
	if len(grid) != 4 {
		t.Fatalf("got %d rows, want 4", len(grid))
	}
	if got := grid[0].Cell(0).String(); got != "Движение денежных средств" {
		t.Errorf("A1 = %q", got)
	}
	if !grid[1].IsBlank() {
		t.Errorf("row 2 should be blank, got %v", grid[1])
	}
	amount := grid[3].Cell(1)
	if amount.Kind != models.CellNumber {
		t.Fatalf("B4 kind = %v, want number", amount.Kind)
	}
	if amount.Number.String() != "1500.25" {
		t.Errorf("B4 = %s, want 1500.25", amount.Number)
	}
	if grid[3].Cell(0).Kind != models.CellText {
		t.Errorf("A4 should stay text")
	}
}

func TestReadGrid_File(t *testing.T) {
	data := buildWorkbook(t, map[string]interface{}{"A1": "hello"})
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	grid, err := ReadGrid(path)
	if err != nil {
		t.Fatalf("ReadGrid: %v", err)
	}
	if len(grid) != 1 || grid[0].Cell(0).String() != "hello" {
		t.Errorf("unexpected grid %v", grid)
	}
}

func TestReadGrid_UnsupportedFormat(t *testing.T) {
	tests := []string{"statement.pdf", "statement.csv", "statement"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadGrid(name)
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ReadGrid(%q) error = %v, want ErrUnsupportedFormat", name, err)
			}
		})
	}
}

func TestReadGrid_MissingFile(t *testing.T) {
	_, err := ReadGrid(filepath.Join(t.TempDir(), "absent.xls"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("missing file reported as unsupported format: %v", err)
	}
}

func TestReadGridFrom_CorruptXLSX(t *testing.T) {
	_, err := ReadGridFrom(bytes.NewReader([]byte("not a zip")), ".xlsx")
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a.xls", ".xls", true},
		{"dir/B.XLSX", ".xlsx", true},
		{"a.xlsm", "", false},
	}
	for _, tt := range tests {
		got, err := Extension(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("Extension(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestReadGrid_XLS(t *testing.T) {
	grid, err := ReadGrid(filepath.Join("testdata", "cashflow.xls"))
	if err != nil {
		t.Fatalf("ReadGrid: %v", err)
	}
	if len(grid) != 5 {
		t.Fatalf("got %d rows, want 5", len(grid))
	}
	if got := grid[0].Cell(0).String(); got != "Движение денежных средств" {
		t.Errorf("A1 = %q", got)
	}
	if got := grid[1].Cell(3).String(); got != "Тип операции" {
		t.Errorf("D2 = %q", got)
	}
	amount := grid[2].Cell(1)
	if amount.Kind != models.CellNumber {
		t.Fatalf("B3 kind = %v, want number", amount.Kind)
	}
	if amount.Number.String() != "123.45" {
		t.Errorf("B3 = %s, want 123.45", amount.Number)
	}
	if got := grid[2].Cell(0).String(); got != "15.03.2023" {
		t.Errorf("A3 = %q", got)
	}
	if !grid[3].IsBlank() {
		t.Errorf("row 4 should be blank, got %v", grid[3])
	}
	if got := grid[4].Cell(0).String(); got != "Итого" {
		t.Errorf("A5 = %q", got)
	}
}
