package ingest

import (
	"bytes"
	"strings"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/ledongthuc/pdf"

	"github.com/papyr-app/papyr-api/library/log"
)

// TextExtractor recovers the plain-text layer of a raw document.
// Implementations must be total: any input, however malformed, yields a
// string. An empty result means "no text recoverable", never "crashed".
type TextExtractor interface {
	Extract(data []byte) string
}

// PDFExtractor extracts embedded text from PDF bytes.
type PDFExtractor struct {
	logger logSDK.Logger
}

// NewPDFExtractor creates a PDF text extractor.
func NewPDFExtractor(logger logSDK.Logger) *PDFExtractor {
	if logger == nil {
		logger = log.Logger.Named("pdf_extractor")
	}
	return &PDFExtractor{logger: logger}
}

// Extract returns the concatenated text of all pages. Parse failures of any
// kind, including panics inside the PDF parser, produce an empty string so
// the ingestion pipeline keeps going without the text layer.
func (e *PDFExtractor) Extract(data []byte) (text string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Warn("pdf parser panicked, treating document as textless",
				zap.Any("panic", recovered))
			text = ""
		}
	}()

	if len(data) == 0 {
		e.logger.Warn("empty document bytes")
		return ""
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		e.logger.Warn("open pdf", zap.Error(err))
		return ""
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("extract page text", zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		builder.WriteString(content)
		builder.WriteString("\n\n")
	}

	text = strings.TrimSpace(builder.String())
	if text == "" {
		// likely a scanned image without an embedded text layer
		e.logger.Warn("no text found in document")
	}

	return text
}
