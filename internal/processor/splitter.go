// internal/processor/splitter.go
package processor

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"pdf-chat-rag/internal/models"
)

const (
	// DefaultChunkSize is the target chunk length in characters
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is how many characters consecutive chunks may share
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, coarsest first; "" means a hard cut
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// TextSplitter splits documents into overlapping chunks, preferring
// paragraph, line and word boundaries over hard cuts.
type TextSplitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// SplitterOption configures a TextSplitter
type SplitterOption func(*TextSplitter)

// WithChunkSize sets the chunk size in characters
func WithChunkSize(size int) SplitterOption {
	return func(s *TextSplitter) {
		if size > 0 {
			s.ChunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between chunks in characters
func WithChunkOverlap(overlap int) SplitterOption {
	return func(s *TextSplitter) {
		if overlap >= 0 {
			s.ChunkOverlap = overlap
		}
	}
}

// WithSeparators replaces the separator list
func WithSeparators(separators []string) SplitterOption {
	return func(s *TextSplitter) {
		if len(separators) > 0 {
			s.Separators = separators
		}
	}
}

// NewTextSplitter creates a new splitter with the given options
func NewTextSplitter(opts ...SplitterOption) *TextSplitter {
	s := &TextSplitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for progress
	if s.ChunkOverlap >= s.ChunkSize {
		s.ChunkOverlap = s.ChunkSize / 4
	}

	return s
}

// SplitDocuments splits every document independently. The result keeps input
// document order, then chunk order within each document. Each chunk carries a
// copy of its document's metadata plus start_index.
func (s *TextSplitter) SplitDocuments(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk

	for _, doc := range docs {
		for _, sp := range s.splitText(doc.Content, 0, s.Separators) {
			metadata := models.CloneMetadata(doc.Metadata)
			metadata[models.MetaStartIndex] = sp.start

			chunks = append(chunks, models.Chunk{
				Content:    sp.text,
				Metadata:   metadata,
				StartIndex: sp.start,
			})
		}
	}

	return chunks
}

// SplitText splits text into chunks of at most ChunkSize characters.
// Every chunk is a whitespace-trimmed substring of text.
func (s *TextSplitter) SplitText(text string) []string {
	spans := s.splitText(text, 0, s.Separators)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = sp.text
	}
	return out
}

// span is a piece of the source text and its character offset there
type span struct {
	text  string
	start int
}

func (s *TextSplitter) splitText(text string, base int, separators []string) []span {
	var finalChunks []span

	// Pick the first separator present in the text
	separator := ""
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var goodSplits []span
	for _, piece := range splitKeepSeparator(text, base, separator) {
		if utf8.RuneCountInString(piece.text) < s.ChunkSize {
			goodSplits = append(goodSplits, piece)
			continue
		}

		if len(goodSplits) > 0 {
			finalChunks = append(finalChunks, s.mergeSplits(goodSplits)...)
			goodSplits = nil
		}

		if len(remaining) == 0 {
			if trimmed, ok := trimSpan(piece); ok {
				finalChunks = append(finalChunks, trimmed)
			}
			continue
		}
		finalChunks = append(finalChunks, s.splitText(piece.text, piece.start, remaining)...)
	}

	if len(goodSplits) > 0 {
		finalChunks = append(finalChunks, s.mergeSplits(goodSplits)...)
	}

	return finalChunks
}

// mergeSplits greedily concatenates contiguous pieces into chunks of at most
// ChunkSize characters, carrying up to ChunkOverlap characters of trailing
// pieces into the next chunk.
func (s *TextSplitter) mergeSplits(splits []span) []span {
	var docs []span
	var current []span
	total := 0

	for _, piece := range splits {
		pieceLen := utf8.RuneCountInString(piece.text)

		if total+pieceLen > s.ChunkSize && len(current) > 0 {
			if doc, ok := joinPieces(current); ok {
				docs = append(docs, doc)
			}

			for len(current) > 0 && (total > s.ChunkOverlap || (total+pieceLen > s.ChunkSize && total > 0)) {
				total -= utf8.RuneCountInString(current[0].text)
				current = current[1:]
			}
		}

		current = append(current, piece)
		total += pieceLen
	}

	if doc, ok := joinPieces(current); ok {
		docs = append(docs, doc)
	}

	return docs
}

// joinPieces concatenates contiguous pieces and trims the result
func joinPieces(pieces []span) (span, bool) {
	var b strings.Builder
	for _, p := range pieces {
		b.WriteString(p.text)
	}
	return trimSpan(span{text: b.String(), start: pieces[0].start})
}

// trimSpan strips surrounding whitespace, moving start past the leading part.
// It reports false when nothing but whitespace remains.
func trimSpan(sp span) (span, bool) {
	left := strings.TrimLeftFunc(sp.text, unicode.IsSpace)
	if left == "" {
		return span{}, false
	}
	skipped := utf8.RuneCountInString(sp.text[:len(sp.text)-len(left)])
	return span{
		text:  strings.TrimRightFunc(left, unicode.IsSpace),
		start: sp.start + skipped,
	}, true
}

// splitKeepSeparator splits text on separator, attaching each separator to the
// start of the piece that follows it so the pieces concatenate back to text.
// Offsets count characters from base. An empty separator splits into single
// characters.
func splitKeepSeparator(text string, base int, separator string) []span {
	if separator == "" {
		pieces := make([]span, 0, len(text))
		offset := base
		for _, r := range text {
			pieces = append(pieces, span{text: string(r), start: offset})
			offset++
		}
		return pieces
	}

	parts := strings.Split(text, separator)
	pieces := make([]span, 0, len(parts))
	offset := base
	for i, part := range parts {
		if i > 0 {
			part = separator + part
		}
		if part != "" {
			pieces = append(pieces, span{text: part, start: offset})
		}
		offset += utf8.RuneCountInString(part)
	}
	return pieces
}
