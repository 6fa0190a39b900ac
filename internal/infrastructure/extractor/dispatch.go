// Package extractor routes a document to the format-specific extractor based
// on MIME type, falling back to the filename extension.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-qa/internal/core/domain"
	"github.com/kirillkom/knowledge-qa/internal/core/ports"
)

type Dispatcher struct {
	plaintext ports.TextExtractor
	pdf       ports.TextExtractor
	xlsx      ports.TextExtractor
}

func NewDispatcher(plaintext, pdf, xlsx ports.TextExtractor) *Dispatcher {
	return &Dispatcher{plaintext: plaintext, pdf: pdf, xlsx: xlsx}
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	target := d.pick(doc)
	if target == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text",
			fmt.Errorf("unsupported format: mime=%q filename=%q", doc.MimeType, doc.Filename))
	}
	return target.Extract(ctx, doc)
}

func (d *Dispatcher) pick(doc *domain.Document) ports.TextExtractor {
	mime := strings.ToLower(strings.TrimSpace(doc.MimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	switch mime {
	case "application/pdf":
		return d.pdf
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return d.xlsx
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return d.plaintext
	}
	if strings.HasPrefix(mime, "text/") {
		return d.plaintext
	}

	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return d.pdf
	case ".xlsx":
		return d.xlsx
	case ".txt", ".md", ".csv", ".json", ".log":
		return d.plaintext
	}
	return nil
}
