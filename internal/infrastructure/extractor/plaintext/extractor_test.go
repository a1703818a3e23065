package plaintext

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

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

func TestExtractTrimsText(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1_note.txt": []byte("  glucosa 7.2 mmol/l\n"),
	}}
	e := NewExtractor(storage)

	text, err := e.Extract(context.Background(), &domain.Document{StoragePath: "doc-1_note.txt", Filename: "note.txt"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "glucosa 7.2 mmol/l" {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractBinaryIsUnprocessable(t *testing.T) {
	storage := &storageFake{data: map[string][]byte{
		"doc-1_scan.bin": {0xff, 0xfe, 0x00, 0x9b},
	}}
	e := NewExtractor(storage)

	_, err := e.Extract(context.Background(), &domain.Document{StoragePath: "doc-1_scan.bin", Filename: "scan.bin"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrUnprocessable) {
		t.Fatalf("expected ErrUnprocessable, got %v", err)
	}
}

func TestExtractMissingSourceFails(t *testing.T) {
	e := NewExtractor(&storageFake{})
	_, err := e.Extract(context.Background(), &domain.Document{StoragePath: "absent", Filename: "absent.txt"})
	if err == nil {
		t.Fatalf("expected error")
	}
}
