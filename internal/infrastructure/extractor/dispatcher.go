package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
	"github.com/clinicore/medical-assistant/internal/infrastructure/extractor/pdfdoc"
	"github.com/clinicore/medical-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/clinicore/medical-assistant/internal/infrastructure/extractor/spreadsheet"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Dispatcher routes a document to the extractor for its format, by file
// extension first and mime type second. Anything unmatched goes through the
// plain-text extractor, which rejects binary content.
type Dispatcher struct {
	plain ports.TextExtractor
	byExt map[string]ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	plain := plaintext.NewExtractor(storage)
	pdfExtractor := pdfdoc.NewExtractor(storage)
	xlsx := spreadsheet.NewExtractor(storage)
	return &Dispatcher{
		plain: plain,
		byExt: map[string]ports.TextExtractor{
			".pdf":  pdfExtractor,
			".xlsx": xlsx,
			".xlsm": xlsx,
			".txt":  plain,
			".md":   plain,
			".csv":  plain,
		},
	}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	if e, ok := d.byExt[strings.ToLower(filepath.Ext(doc.Filename))]; ok {
		return e.Extract(ctx, doc)
	}
	switch doc.MimeType {
	case mimePDF:
		return d.byExt[".pdf"].Extract(ctx, doc)
	case mimeXLSX:
		return d.byExt[".xlsx"].Extract(ctx, doc)
	}
	return d.plain.Extract(ctx, doc)
}
