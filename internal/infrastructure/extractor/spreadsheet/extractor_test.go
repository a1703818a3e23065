package spreadsheet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

type storageFake struct {
	data map[string][]byte
}

func (s *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[key] = raw
	return nil
}

func (s *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := s.data[key]
	if !ok {
		return nil, errors.New("missing key: " + key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func labPanelWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]any{
		"A1": "Assay", "B1": "Value", "C1": "Unit",
		"A2": "Glucose", "B2": 7.2, "C2": "mmol/L",
		"A3": "HbA1c", "B3": 6.1, "C3": "%",
	}
	for axis, value := range cells {
		if err := f.SetCellValue("Sheet1", axis, value); err != nil {
			t.Fatalf("set cell %s: %v", axis, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExtractFlattensRows(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1_panel.xlsx": labPanelWorkbook(t),
	}}
	e := NewExtractor(storage)

	text, err := e.Extract(context.Background(), &domain.Document{StoragePath: "doc-1_panel.xlsx", Filename: "panel.xlsx"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(text, "Glucose | 7.2 | mmol/L") {
		t.Fatalf("missing flattened row in %q", text)
	}
	if !strings.HasPrefix(text, "Sheet1") {
		t.Fatalf("missing sheet header in %q", text)
	}
}

func TestExtractCorruptWorkbookIsUnprocessable(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1_panel.xlsx": []byte("not a workbook"),
	}}
	e := NewExtractor(storage)

	_, err := e.Extract(context.Background(), &domain.Document{StoragePath: "doc-1_panel.xlsx", Filename: "panel.xlsx"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrUnprocessable) {
		t.Fatalf("expected ErrUnprocessable, got %v", err)
	}
}
