package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf-chat-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal single-font PDF with one text line per page
func buildPDF(pages ...string) []byte {
	var buf bytes.Buffer
	var offsets []int

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		writeObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPDFLoader_Load(t *testing.T) {
	path := writeTempFile(t, "capitals.pdf", buildPDF(
		"The capital of France is Paris.",
		"The capital of Italy is Rome.",
	))

	docs, err := NewPDFLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Contains(t, docs[0].Content, "The capital of France is Paris.")
	assert.Contains(t, docs[1].Content, "The capital of Italy is Rome.")

	for i, doc := range docs {
		assert.Equal(t, i, doc.Metadata[models.MetaPage])
		assert.Equal(t, 2, doc.Metadata[models.MetaTotalPages])
		assert.Equal(t, "capitals.pdf", doc.Metadata[models.MetaFileName])
		assert.Equal(t, path, doc.Metadata[models.MetaSource])
	}
}

func TestPDFLoader_Load_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "not a pdf",
			path: func(t *testing.T) string {
				return writeTempFile(t, "notes.pdf", []byte("just some plain text"))
			},
		},
		{
			name: "truncated pdf",
			path: func(t *testing.T) string {
				data := buildPDF("hello")
				return writeTempFile(t, "broken.pdf", data[:len(data)/2])
			},
		},
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.pdf")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := NewPDFLoader().Load(context.Background(), tt.path(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse), "got %v", err)
			assert.Nil(t, docs)
		})
	}
}

func TestPDFLoader_Load_CancelledContext(t *testing.T) {
	path := writeTempFile(t, "one.pdf", buildPDF("page"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFLoader().Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
