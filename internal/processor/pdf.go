// internal/processor/pdf.go
package processor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"pdf-chat-rag/internal/models"

	"github.com/ledongthuc/pdf"
)

// ErrParse is returned when a file cannot be read as a PDF
var ErrParse = errors.New("pdf parse error")

// PDFLoader extracts page-level documents from PDF files
type PDFLoader struct{}

// NewPDFLoader creates a new PDF loader
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// Load reads the PDF at filePath and returns one document per page, in page order
func (l *PDFLoader) Load(ctx context.Context, filePath string) (docs []models.Document, err error) {
	// The pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("%w: %s: %v", ErrParse, filePath, r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", ErrParse, err)
	}
	defer f.Close()

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		absPath = filePath
	}

	totalPages := r.NumPage()

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		// Font resource names are scoped to the page
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			font := page.Font(name)
			fonts[name] = &font
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to extract text from page %d: %v", ErrParse, i, err)
		}

		docs = append(docs, models.Document{
			Content: text,
			Metadata: map[string]any{
				models.MetaSource:     absPath,
				models.MetaFileName:   filepath.Base(filePath),
				models.MetaPage:       i - 1,
				models.MetaTotalPages: totalPages,
			},
		})
	}

	return docs, nil
}
