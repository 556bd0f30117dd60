package processor

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"pdf-chat-rag/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	return strings.Join(words, " ")
}

func runeSlice(text string, start, length int) string {
	r := []rune(text)
	return string(r[start : start+length])
}

func TestNewTextSplitter(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		s := NewTextSplitter()
		assert.Equal(t, DefaultChunkSize, s.ChunkSize)
		assert.Equal(t, DefaultChunkOverlap, s.ChunkOverlap)
		assert.Equal(t, DefaultSeparators, s.Separators)
	})

	t.Run("custom values", func(t *testing.T) {
		s := NewTextSplitter(WithChunkSize(500), WithChunkOverlap(50))
		assert.Equal(t, 500, s.ChunkSize)
		assert.Equal(t, 50, s.ChunkOverlap)
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		s := NewTextSplitter(WithChunkSize(0), WithChunkOverlap(-1))
		assert.Equal(t, DefaultChunkSize, s.ChunkSize)
		assert.Equal(t, DefaultChunkOverlap, s.ChunkOverlap)
	})

	t.Run("overlap larger than size is clamped", func(t *testing.T) {
		s := NewTextSplitter(WithChunkSize(100), WithChunkOverlap(150))
		assert.Less(t, s.ChunkOverlap, s.ChunkSize)
	})
}

func TestSplitDocuments_ShortDocument(t *testing.T) {
	s := NewTextSplitter()
	doc := models.Document{
		Content:  "The capital of France is Paris.",
		Metadata: map[string]any{models.MetaPage: 3, models.MetaSource: "/tmp/a.pdf"},
	}

	chunks := s.SplitDocuments([]models.Document{doc})

	require.Len(t, chunks, 1)
	assert.Equal(t, doc.Content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, 0, chunks[0].Metadata[models.MetaStartIndex])
	assert.Equal(t, 3, chunks[0].Metadata[models.MetaPage])
	assert.Equal(t, "/tmp/a.pdf", chunks[0].Metadata[models.MetaSource])
	_, leaked := doc.Metadata[models.MetaStartIndex]
	assert.False(t, leaked, "parent metadata must not be modified")
}

func TestSplitDocuments_ExactlyChunkSize(t *testing.T) {
	s := NewTextSplitter()
	content := strings.Repeat("x", DefaultChunkSize)

	chunks := s.SplitDocuments([]models.Document{{Content: content}})

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartIndex)
}

func TestSplitDocuments_EmptyDocument(t *testing.T) {
	s := NewTextSplitter()
	chunks := s.SplitDocuments([]models.Document{{Content: "  \n\n  "}})
	assert.Empty(t, chunks)
}

func TestSplitDocuments_LongDocumentCoverage(t *testing.T) {
	s := NewTextSplitter()
	content := numberedWords(1000)
	length := utf8.RuneCountInString(content)

	chunks := s.SplitDocuments([]models.Document{{Content: content}})
	require.Greater(t, len(chunks), 1)

	expected := math.Ceil(float64(length-DefaultChunkOverlap) / float64(DefaultChunkSize-DefaultChunkOverlap))
	assert.InDelta(t, expected, float64(len(chunks)), 1)

	assert.Equal(t, 0, chunks[0].StartIndex)
	last := chunks[len(chunks)-1]
	assert.Equal(t, length, last.StartIndex+utf8.RuneCountInString(last.Content))

	for i, chunk := range chunks {
		size := utf8.RuneCountInString(chunk.Content)
		assert.LessOrEqual(t, size, DefaultChunkSize, "chunk %d too large", i)
		assert.Equal(t, chunk.Content, runeSlice(content, chunk.StartIndex, size), "chunk %d start index", i)

		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		prevEnd := prev.StartIndex + utf8.RuneCountInString(prev.Content)
		assert.Greater(t, chunk.StartIndex, prev.StartIndex, "chunks must advance")
		if chunk.StartIndex < prevEnd {
			assert.LessOrEqual(t, prevEnd-chunk.StartIndex, DefaultChunkOverlap, "chunk %d overlap", i)
		} else {
			gap := runeSlice(content, prevEnd, chunk.StartIndex-prevEnd)
			assert.Empty(t, strings.TrimSpace(gap), "chunk %d leaves uncovered text", i)
		}
	}
}

// repeatedWords builds text from a small vocabulary so most chunks share
// their words with earlier parts of the text
func repeatedWords(rng *rand.Rand, n int) string {
	vocab := []string{"alpha", "beta", "lorem", "ipsum", "日本語", "the", "a", "paris"}
	words := make([]string, n)
	for i := range words {
		words[i] = vocab[rng.Intn(len(vocab))]
	}
	return strings.Join(words, " ")
}

func assertChunkLayout(t *testing.T, content string, chunks []models.Chunk) {
	t.Helper()
	for i, chunk := range chunks {
		size := utf8.RuneCountInString(chunk.Content)
		require.Equal(t, chunk.Content, runeSlice(content, chunk.StartIndex, size), "chunk %d start index", i)
		assert.Equal(t, chunk.StartIndex, chunk.Metadata[models.MetaStartIndex])

		if i == 0 {
			assert.Empty(t, strings.TrimSpace(runeSlice(content, 0, chunk.StartIndex)))
			continue
		}
		prev := chunks[i-1]
		prevEnd := prev.StartIndex + utf8.RuneCountInString(prev.Content)
		if chunk.StartIndex < prevEnd {
			assert.LessOrEqual(t, prevEnd-chunk.StartIndex, DefaultChunkOverlap, "chunk %d overlap", i)
		} else {
			gap := runeSlice(content, prevEnd, chunk.StartIndex-prevEnd)
			assert.Empty(t, strings.TrimSpace(gap), "chunk %d leaves uncovered text", i)
		}
	}
	if len(chunks) > 0 {
		last := chunks[len(chunks)-1]
		end := last.StartIndex + utf8.RuneCountInString(last.Content)
		assert.Empty(t, strings.TrimSpace(string([]rune(content)[end:])))
	}
}

func TestSplitDocuments_RepeatedWordsStartIndex(t *testing.T) {
	s := NewTextSplitter()

	t.Run("short chunk before unbroken run", func(t *testing.T) {
		content := strings.Repeat("beta lorem ", 250) + "beta " + strings.Repeat("z", 2500) + " beta"
		chunks := s.SplitDocuments([]models.Document{{Content: content}})
		require.Greater(t, len(chunks), 3)
		assertChunkLayout(t, content, chunks)
	})

	for trial := 0; trial < 50; trial++ {
		t.Run(fmt.Sprintf("random text %d", trial), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(trial)))
			content := repeatedWords(rng, 400+rng.Intn(400)) + " " +
				strings.Repeat("z", 2500) + " " + repeatedWords(rng, 200)
			chunks := s.SplitDocuments([]models.Document{{Content: content}})
			require.NotEmpty(t, chunks)
			assertChunkLayout(t, content, chunks)
		})
	}
}

func TestSplitDocuments_LeadingWhitespace(t *testing.T) {
	s := NewTextSplitter()
	content := "  \n  The capital of France is Paris.  "

	chunks := s.SplitDocuments([]models.Document{{Content: content}})

	require.Len(t, chunks, 1)
	assert.Equal(t, "The capital of France is Paris.", chunks[0].Content)
	assert.Equal(t, 5, chunks[0].StartIndex)
}

func TestSplitDocuments_PrefersParagraphBoundaries(t *testing.T) {
	s := NewTextSplitter(WithChunkSize(60), WithChunkOverlap(0))
	first := strings.Repeat("a", 40)
	second := strings.Repeat("b", 40)
	content := first + "\n\n" + second

	chunks := s.SplitDocuments([]models.Document{{Content: content}})

	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0].Content)
	assert.Equal(t, second, chunks[1].Content)
	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, 42, chunks[1].StartIndex)
}

func TestSplitDocuments_HardCutWithoutSeparators(t *testing.T) {
	s := NewTextSplitter(WithChunkSize(10), WithChunkOverlap(3))
	content := "0123456789ABCDEFGHIJ"

	chunks := s.SplitDocuments([]models.Document{{Content: content}})

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "0123456789", chunks[0].Content)
	assert.Equal(t, "789ABCDEFG", chunks[1].Content)
	assert.Equal(t, 7, chunks[1].StartIndex)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 10)
	}
}

func TestSplitDocuments_PreservesDocumentOrder(t *testing.T) {
	s := NewTextSplitter(WithChunkSize(50), WithChunkOverlap(10))
	docs := []models.Document{
		{Content: numberedWords(30), Metadata: map[string]any{models.MetaPage: 0}},
		{Content: numberedWords(30), Metadata: map[string]any{models.MetaPage: 1}},
	}

	chunks := s.SplitDocuments(docs)

	seenSecond := false
	prevStart := -1
	for _, c := range chunks {
		page := c.Metadata[models.MetaPage].(int)
		if page == 1 && !seenSecond {
			seenSecond = true
			prevStart = -1
		}
		if seenSecond {
			assert.Equal(t, 1, page, "page 0 chunk after page 1 chunk")
		}
		assert.Greater(t, c.StartIndex, prevStart)
		prevStart = c.StartIndex
	}
	assert.True(t, seenSecond)
}

func TestSplitDocuments_MultibyteStartIndex(t *testing.T) {
	s := NewTextSplitter(WithChunkSize(8), WithChunkOverlap(0))
	content := "héllo wörld ünïcode"

	chunks := s.SplitDocuments([]models.Document{{Content: content}})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, c.Content, runeSlice(content, c.StartIndex, utf8.RuneCountInString(c.Content)))
	}
}
