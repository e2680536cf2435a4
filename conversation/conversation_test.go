package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/polyllm/extract"
	"github.com/richinex/polyllm/handler"
	jsonutil "github.com/richinex/polyllm/internal/json"
	"github.com/richinex/polyllm/internal/llmtest"
	"github.com/richinex/polyllm/llm"
	"github.com/richinex/polyllm/payload"
)

func newHandler(fake *llmtest.Provider) *handler.Handler {
	return handler.New(
		handler.WithProvider("openai", fake),
		handler.WithExtractor(extract.Unavailable()),
	)
}

func TestRoundTrip(t *testing.T) {
	fake := &llmtest.Provider{Replies: []string{"hi there", "again to you"}}
	conv := New(newHandler(fake), "openai/gpt-4o", WithSystemPrompt("be brief"))

	_, err := conv.Send(context.Background(), Turn{Text: "hello"})
	require.NoError(t, err)

	first := fake.LastCall().Messages
	require.Len(t, first, 2)
	assert.Equal(t, llm.SystemMessage("be brief"), first[0])
	assert.Equal(t, 2, conv.Len())

	_, err = conv.Send(context.Background(), Turn{Text: "again"})
	require.NoError(t, err)

	second := fake.LastCall().Messages
	require.Len(t, second, 3)
	assert.Equal(t, llm.RoleUser, second[0].Role, "system prompt is not resent")
	assert.Equal(t, "hello", second[0].Text())
	assert.Equal(t, llm.AssistantMessage("hi there"), second[1])
	assert.Equal(t, "again", second[2].Text())

	history := conv.History()
	require.Len(t, history, 4)
	assert.Equal(t, llm.AssistantMessage("again to you"), history[3])
}

func TestTranscriptStoresNormalizedContent(t *testing.T) {
	fake := &llmtest.Provider{Reply: "seen"}
	conv := New(newHandler(fake), "openai/gpt-4o")

	_, err := conv.Send(context.Background(), Turn{
		Text:  "look",
		Files: []payload.FileRef{payload.Inline("cat.png", "iVBO")},
	})
	require.NoError(t, err)

	user := conv.History()[0]
	assert.Equal(t, []llm.ContentBlock{
		llm.TextBlock("look"),
		llm.ImageBlock("data:image/png;base64,iVBO"),
	}, user.Blocks)
}

func TestFailedTurnLeavesTranscriptUnchanged(t *testing.T) {
	fake := &llmtest.Provider{Reply: "ok"}
	conv := New(newHandler(fake), "openai/gpt-4o")

	_, err := conv.Send(context.Background(), Turn{Text: "one"})
	require.NoError(t, err)

	fake.Error = errors.New("server error")
	_, err = conv.Send(context.Background(), Turn{Text: "two"})
	require.Error(t, err)
	assert.Equal(t, 2, conv.Len())

	fake.Error = nil
	fake.Reply = "no json here"
	_, err = conv.Send(context.Background(), Turn{Text: "three", ParseJSON: true})
	assert.ErrorIs(t, err, jsonutil.ErrMalformedResponse)
	assert.Equal(t, 2, conv.Len())

	_, err = conv.Send(context.Background(), Turn{Text: "four", Files: []payload.FileRef{payload.Path("/does/not/exist.pdf")}})
	assert.ErrorIs(t, err, payload.ErrNotFound)
	assert.Equal(t, 2, conv.Len())
}

func TestJSONTurnRecordsRawReply(t *testing.T) {
	fake := &llmtest.Provider{Reply: "```json\n{\"ok\":true}\n```"}
	conv := New(newHandler(fake), "openai/gpt-4o")

	completion, err := conv.Send(context.Background(), Turn{Text: "status?", ParseJSON: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, completion.Data)
	assert.Equal(t, "```json\n{\"ok\":true}\n```", conv.History()[1].Content)
}

func TestStreamAppendsOnlyWhenExhausted(t *testing.T) {
	fake := &llmtest.Provider{Fragments: []string{"par", "tial"}}
	conv := New(newHandler(fake), "openai/gpt-4o", WithSystemPrompt("sys"))

	fragments, err := conv.Stream(context.Background(), Turn{Text: "go"})
	require.NoError(t, err)
	for range fragments {
		break
	}
	assert.Equal(t, 0, conv.Len(), "abandoned stream appends nothing")
	assert.Equal(t, fake.Opened(), fake.Closed())

	fragments, err = conv.Stream(context.Background(), Turn{Text: "go"})
	require.NoError(t, err)
	var text string
	for fragment, err := range fragments {
		require.NoError(t, err)
		text += fragment
	}
	assert.Equal(t, "partial", text)

	history := conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, "go", history[0].Text())
	assert.Equal(t, llm.AssistantMessage("partial"), history[1])
}

func TestStreamFailureAppendsNothing(t *testing.T) {
	fake := &llmtest.Provider{Fragments: []string{"half"}, StreamError: errors.New("reset")}
	conv := New(newHandler(fake), "openai/gpt-4o")

	fragments, err := conv.Stream(context.Background(), Turn{Text: "go"})
	require.NoError(t, err)

	var lastErr error
	for _, err := range fragments {
		lastErr = err
	}
	require.Error(t, lastErr)
	assert.Equal(t, 0, conv.Len())
}

func TestStreamConfigurationError(t *testing.T) {
	fake := &llmtest.Provider{}
	conv := New(newHandler(fake), "")

	_, err := conv.Stream(context.Background(), Turn{Text: "go"})
	assert.ErrorIs(t, err, handler.ErrConfiguration)
}

func TestClearHistoryResendsSystemPrompt(t *testing.T) {
	fake := &llmtest.Provider{Reply: "ok"}
	conv := New(newHandler(fake), "openai/gpt-4o", WithSystemPrompt("first"), WithTemperature(0.7))

	_, err := conv.Send(context.Background(), Turn{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0.7, fake.LastCall().Temperature)

	conv.ClearHistory()
	conv.SetSystemPrompt("second")
	assert.Equal(t, 0, conv.Len())

	_, err = conv.Send(context.Background(), Turn{Text: "b"})
	require.NoError(t, err)
	msgs := fake.LastCall().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.SystemMessage("second"), msgs[0])
}

func TestHistoryIsACopy(t *testing.T) {
	fake := &llmtest.Provider{Reply: "ok"}
	conv := New(newHandler(fake), "openai/gpt-4o")
	_, err := conv.Send(context.Background(), Turn{Text: "a"})
	require.NoError(t, err)

	h := conv.History()
	h[0] = llm.UserMessage("tampered")
	assert.Equal(t, "a", conv.History()[0].Text())
}

func TestIdentity(t *testing.T) {
	a := New(newHandler(&llmtest.Provider{}), "openai/gpt-4o")
	b := New(newHandler(&llmtest.Provider{}), "openai/gpt-4o")

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "openai/gpt-4o", a.Model())
	assert.Contains(t, a.String(), "model=openai/gpt-4o")
	assert.Contains(t, a.String(), "messages=0")
}
