package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

// Extractor handles txt, md and csv uploads, which are stored verbatim
// and only need validation and whitespace trimming.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	rc, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored object: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read stored object: %w", err)
	}

	// A renamed binary sneaking in with a .txt extension must not reach
	// the chunker as mojibake.
	if !utf8.Valid(data) {
		return "", domain.WrapError(domain.ErrUnprocessable, "extract plain text",
			fmt.Errorf("binary content in %s", doc.Filename))
	}

	return strings.TrimSpace(string(data)), nil
}
