package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/broker-statement-parser/internal/storage"
)

func setupTestApp(t *testing.T, withStore bool) *fiber.App {
	t.Helper()
	h := &Handler{Log: zerolog.Nop()}
	if withStore {
		db, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
		if err != nil {
			t.Fatalf("storage.New: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		h.Store = storage.NewStatementRepository(db)
	}
	return NewApp(h, 4*1024*1024)
}

// statementWorkbook renders a minimal cash-flow report as .xlsx bytes.
func statementWorkbook(t *testing.T) []byte {
	t.Helper()
	rows := [][]interface{}{
		{"Отчет Банка ВТБ (ПАО) за период с 01.01.2023 по 31.12.2023 о сделках"},
		{"№ субсчета: 12345-67"},
		{},
		{"Движение денежных средств"},
		{"Дата", "Сумма", "Валюта", "Тип операции", "Комментарий"},
		{"15.03.2023", 123.45, "RUB", "Купонный доход", "Купон RU000A0JX0J2"},
		{"20.03.2023", 10000, "RUB", "Зачисление денежных средств", ""},
		{},
	}
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue("Sheet1", cell, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("failed to decode response %q: %v", body, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp(t, false)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	var result map[string]interface{}
	decode(t, resp, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", result["status"])
	}
	if result["archive"] != false {
		t.Errorf("expected archive=false, got %v", result["archive"])
	}
}

func TestParseEndpointRequiresFile(t *testing.T) {
	app := setupTestApp(t, false)

	req := httptest.NewRequest("POST", "/api/parse", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=----test")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for missing file, got %d", resp.StatusCode)
	}
}

func TestParseEndpointRejects(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		status   int
	}{
		{"pdf upload", "statement.pdf", []byte("%PDF-1.4"), nil, fiber.StatusBadRequest},
		{"corrupt workbook", "statement.xlsx", []byte("not a zip"), nil, fiber.StatusUnprocessableEntity},
		{"unknown broker", "statement.xlsx", []byte("x"), map[string]string{"broker": "acme"}, fiber.StatusBadRequest},
		{"unknown format", "statement.xlsx", []byte("x"), map[string]string{"format": "xml"}, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupTestApp(t, false)
			resp, err := app.Test(uploadRequest(t, tt.filename, tt.content, tt.fields), -1)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			var result ParseResponse
			decode(t, resp, &result)
			if result.Success || result.Error == "" {
				t.Errorf("expected error response, got %+v", result)
			}
		})
	}
}

func TestParseEndpointJSON(t *testing.T) {
	app := setupTestApp(t, false)

	resp, err := app.Test(uploadRequest(t, "report.xlsx", statementWorkbook(t), nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result ParseResponse
	decode(t, resp, &result)
	if !result.Success || result.Result == nil {
		t.Fatalf("unexpected response %+v", result)
	}
	if result.StatementID != "" {
		t.Error("no statement id expected without archive")
	}
	st := result.Result
	if st.AccountID != "12345-67" || st.DateStart != "2023-01-01" || st.DateEnd != "2023-12-31" {
		t.Errorf("header = %+v", st.StatementHeader)
	}
	if len(st.Operations) != 2 {
		t.Fatalf("got %d operations, want 2", len(st.Operations))
	}
	if st.Operations[0].OperationType != "coupon" || st.Operations[0].ISIN != "RU000A0JX0J2" {
		t.Errorf("first operation = %+v", st.Operations[0])
	}
	if st.Operations[1].OperationType != "deposit" {
		t.Errorf("second operation = %+v", st.Operations[1])
	}
}

func TestParseEndpointCSV(t *testing.T) {
	app := setupTestApp(t, false)

	req := uploadRequest(t, "report.xlsx", statementWorkbook(t), map[string]string{"format": "csv", "header": "false"})
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 3 {
		t.Errorf("expected header + 2 rows, got %d lines:\n%s", len(lines), body)
	}
	if !strings.HasPrefix(lines[0], "date,operation_type") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestArchiveRoutes(t *testing.T) {
	app := setupTestApp(t, true)

	resp, err := app.Test(uploadRequest(t, "report.xlsx", statementWorkbook(t), nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var parsed ParseResponse
	decode(t, resp, &parsed)
	if parsed.StatementID == "" {
		t.Fatal("expected statement id when archive is configured")
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/statements", nil))
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Statements []storage.StoredStatement `json:"statements"`
	}
	decode(t, resp, &list)
	if len(list.Statements) != 1 || list.Statements[0].SourceName != "report.xlsx" {
		t.Errorf("statements = %+v", list.Statements)
	}

	resp, err = app.Test(httptest.NewRequest("GET", fmt.Sprintf("/api/statements/%s/operations", parsed.StatementID), nil))
	if err != nil {
		t.Fatal(err)
	}
	var ops struct {
		Operations []map[string]interface{} `json:"operations"`
	}
	decode(t, resp, &ops)
	if len(ops.Operations) != 2 {
		t.Errorf("got %d archived operations, want 2", len(ops.Operations))
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/statements/not-a-uuid/operations", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/statements/00000000-0000-0000-0000-000000000001/operations", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("expected 404 for unknown id, got %d", resp.StatusCode)
	}
}

func TestArchiveRoutesAbsentWithoutStore(t *testing.T) {
	app := setupTestApp(t, false)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/statements", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
