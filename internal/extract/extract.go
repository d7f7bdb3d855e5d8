// Package extract inspects uploaded resume files before they are sent for parsing.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

// ErrNotPDF indicates the payload is not a PDF document.
var ErrNotPDF = errors.New("not a pdf document")

// PDFInfo summarizes a PDF payload.
type PDFInfo struct {
	SizeBytes int
	Pages     int
	TextChars int
}

// DetectMimeType sniffs the payload, falling back to the file extension for PDFs.
func DetectMimeType(data []byte, fileName string) string {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return mimePDF
	}
	sniffed := http.DetectContentType(data)
	clean := strings.ToLower(strings.TrimSpace(strings.Split(sniffed, ";")[0]))
	if clean == "application/octet-stream" && strings.HasSuffix(strings.ToLower(fileName), ".pdf") && len(data) > 0 {
		// Some exporters prepend junk before the header.
		if bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
			return mimePDF
		}
	}
	return clean
}

// IsPDF reports whether the payload looks like a PDF.
func IsPDF(data []byte, fileName string) bool {
	return DetectMimeType(data, fileName) == mimePDF
}

// InspectPDF opens the document and counts pages and extractable text.
// Callers treat failures as informational only.
func InspectPDF(ctx context.Context, data []byte) (PDFInfo, error) {
	if err := ctx.Err(); err != nil {
		return PDFInfo{}, err
	}
	info := PDFInfo{SizeBytes: len(data)}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return info, ErrNotPDF
	}

	reader, err := openPDF(data)
	if err != nil {
		return info, fmt.Errorf("open pdf: %w", err)
	}
	info.Pages = reader.NumPage()

	plain, err := reader.GetPlainText()
	if err != nil {
		return info, fmt.Errorf("pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return info, fmt.Errorf("pdf text: %w", err)
	}
	info.TextChars = len(strings.TrimSpace(buf.String()))
	return info, nil
}

// openPDF guards against panics from malformed documents.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}
