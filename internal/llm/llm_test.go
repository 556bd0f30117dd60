package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdf-chat-rag/internal/models"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingGenerator struct {
	prompts []string
	answer  string
	err     error
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.err
}

func TestJoinContext(t *testing.T) {
	assert.Equal(t, "", JoinContext(nil))
	assert.Equal(t, "one", JoinContext([]models.Chunk{{Content: "one"}}))
	assert.Equal(t, "one\n\ntwo", JoinContext([]models.Chunk{{Content: "one"}, {Content: "two"}}))
}

func TestAnswerer_RenderPrompt(t *testing.T) {
	a := NewAnswerer(&recordingGenerator{})

	prompt, err := a.RenderPrompt("What is 2+2?", "")
	require.NoError(t, err)

	expected := "\nYou are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know. Use three sentences maximum and keep the answer concise.\n" +
		"Question: What is 2+2? \n" +
		"Context:  \n" +
		"Answer:\n"
	assert.Equal(t, expected, prompt)
}

func TestAnswerer_Answer(t *testing.T) {
	t.Run("passes joined context and returns output verbatim", func(t *testing.T) {
		gen := &recordingGenerator{answer: "  Paris.  <think>x</think>"}
		a := NewAnswerer(gen)

		chunks := []models.Chunk{{Content: "The capital of France is Paris."}, {Content: "Rome is in Italy."}}
		answer, err := a.Answer(context.Background(), "What is the capital of France?", chunks)
		require.NoError(t, err)

		assert.Equal(t, "  Paris.  <think>x</think>", answer)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "Question: What is the capital of France? \n")
		assert.Contains(t, gen.prompts[0], "Context: The capital of France is Paris.\n\nRome is in Italy. \n")
	})

	t.Run("wraps generator failures", func(t *testing.T) {
		gen := &recordingGenerator{err: ErrGeneration}
		a := NewAnswerer(gen)

		_, err := a.Answer(context.Background(), "q", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGeneration))
	})
}

func generateServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaLLM_Generate(t *testing.T) {
	var got api.GenerateRequest
	srv := generateServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, part := range []string{"Paris ", "is the ", "capital."} {
			_ = enc.Encode(api.GenerateResponse{Model: got.Model, Response: part})
		}
		_ = enc.Encode(api.GenerateResponse{Model: got.Model, Done: true})
	})

	o, err := NewOllamaLLM(Config{Host: srv.URL, Model: "deepseek-r1:8b", Temperature: 0.1}, nil)
	require.NoError(t, err)

	out, err := o.Generate(context.Background(), "prompt text")
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital.", out)
	assert.Equal(t, "deepseek-r1:8b", got.Model)
	assert.Equal(t, "prompt text", got.Prompt)
}

func TestOllamaLLM_Generate_Errors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := generateServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		})
		o, err := NewOllamaLLM(Config{Host: srv.URL, Model: "m"}, nil)
		require.NoError(t, err)

		_, err = o.Generate(context.Background(), "p")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGeneration))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := generateServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		o, err := NewOllamaLLM(Config{Host: srv.URL, Model: "m", Timeout: 50 * time.Millisecond}, nil)
		require.NoError(t, err)

		_, err = o.Generate(context.Background(), "p")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGeneration))
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := NewOllamaLLM(Config{Host: "http://localhost:11434"}, nil)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "model"))
	})
}
