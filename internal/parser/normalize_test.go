package parser

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/broker-statement-parser/internal/models"
)

func TestToDate(t *testing.T) {
	tests := []struct {
		name string
		cell models.Cell
		want string
		ok   bool
	}{
		{"short year", models.Text("31.12.23"), "2023-12-31", true},
		{"full date", models.Text("05.04.2023"), "2023-04-05", true},
		{"date with time", models.Text("15.03.2023 10:30:00"), "2023-03-15T10:30:00", true},
		{"comma separated", models.Text("01,02,2023"), "2023-02-01", true},
		{"iso", models.Text("2023-06-30"), "2023-06-30", true},
		{"embedded", models.Text("Зачисление по поручению от 07.08.2023 №5"), "2023-08-07", true},
		{"serial", models.Number(decimal.NewFromInt(45000)), "2023-03-15", true},
		{"serial with time", models.Number(decimal.RequireFromString("45000.5")), "2023-03-15T12:00:00", true},
		{"column numbering", models.Number(decimal.NewFromInt(3)), "", false},
		{"not a date", models.Text("not a date"), "", false},
		{"empty", models.Empty(), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toDate(tt.cell)
			if ok != tt.ok {
				t.Fatalf("toDate(%v) ok = %v, want %v", tt.cell, ok, tt.ok)
			}
			if ok && got.ISO() != tt.want {
				t.Errorf("toDate(%v) = %s, want %s", tt.cell, got.ISO(), tt.want)
			}
		})
	}
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1 234,56", "1234.56", true},
		{"-1 000.5", "-1000.5", true},
		{"0", "0", true},
		{"-", "0", false},
		{"abc", "0", false},
		{"", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := toDecimal(models.Text(tt.in))
			if ok != tt.ok || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("toDecimal(%q) = %s, %v; want %s, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestToNonNegativeInt(t *testing.T) {
	tests := []struct {
		cell models.Cell
		want int64
	}{
		{models.Text("10"), 10},
		{models.Text("-7"), 7},
		{models.Text("2,6"), 3},
		{models.Text("n/a"), 0},
		{models.Empty(), 0},
	}
	for _, tt := range tests {
		if got := toNonNegativeInt(tt.cell); got != tt.want {
			t.Errorf("toNonNegativeInt(%v) = %d, want %d", tt.cell, got, tt.want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := map[string]string{
		"Рубль": "RUB",
		"РУБЛЬ": "RUB",
		"RUR":   "RUB",
		" usd ": "USD",
		"руб.":  "RUB",
		"XYZ":   "XYZ",
		"":      "",
	}
	for in, want := range tests {
		if got := normalizeCurrency(in); got != want {
			t.Errorf("normalizeCurrency(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormText(t *testing.T) {
	tests := map[string]string{
		"  Сумма  сделки ": "сумма сделки",
		"Расчётный\nсчёт":  "расчетный счет",
		"":                 "",
	}
	for in, want := range tests {
		if got := normText(in); got != want {
			t.Errorf("normText(%q) = %q, want %q", in, got, want)
		}
	}
}
