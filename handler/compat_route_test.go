package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/polyllm/extract"
	"github.com/richinex/polyllm/internal/llmtest"
	"github.com/richinex/polyllm/llm"
	"github.com/richinex/polyllm/payload"
)

// chatServer answers chat completion requests like an OpenAI-compatible
// gateway and records the raw request bodies.
func chatServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var bodies []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		bodies = append(bodies, string(data))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"summary"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":1,"total_tokens":5}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestUncataloguedGatewayModelGetsExtractedFiles(t *testing.T) {
	for _, model := range []string{
		"openrouter/anthropic/claude-3.5-sonnet",
		"openrouter/google/gemini-2.5-flash",
	} {
		t.Run(model, func(t *testing.T) {
			srv, bodies := chatServer(t)
			extractions := 0
			h := New(
				WithProvider("openrouter", llm.NewOpenRouterProvider("key", srv.URL, 256)),
				WithExtractor(extract.Func(func(_ context.Context, filename, _ string) (string, error) {
					extractions++
					return "md(" + filename + ")", nil
				})),
			)

			assert.True(t, h.RequiresPreprocessing(model))

			completion, err := h.Complete(context.Background(), Request{
				Model:    model,
				UserText: "summarize",
				Files:    []payload.FileRef{payload.Inline("doc.pdf", "JVBERi0xLjQ=")},
			})
			require.NoError(t, err)
			assert.Equal(t, "summary", completion.Text)
			assert.Equal(t, 1, extractions)
			require.Len(t, *bodies, 1)
			assert.Contains(t, (*bodies)[0], "md(doc.pdf)")
		})
	}
}

func TestTextOnlyProviderWithoutCatalogEntry(t *testing.T) {
	// The test catalog has no gateway providers, so the decision comes from
	// the provider type alone.
	h := testHandler(t, &llmtest.Provider{})

	assert.True(t, h.RequiresPreprocessing("deepseek/deepseek-reasoner-next"))
	assert.True(t, h.RequiresPreprocessing("openrouter/meta/llama-4"))
	assert.False(t, h.RequiresPreprocessing("openai/unknown-model"))

	_, err := h.ResolvePreprocessing("openrouter/meta/llama-4", boolPtr(false))
	assert.ErrorIs(t, err, ErrConfiguration)
}
