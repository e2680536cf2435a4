package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMarshalPlainContent(t *testing.T) {
	data, err := json.Marshal(UserMessage("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))
}

func TestMessageMarshalBlocks(t *testing.T) {
	msg := UserBlocksMessage([]ContentBlock{
		TextBlock("describe"),
		ImageBlock("data:image/png;base64,iVBO"),
		FileBlock("report.pdf", "data:application/pdf;base64,JVBE"),
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "user",
		"content": [
			{"type": "text", "text": "describe"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,iVBO"}},
			{"type": "file", "file": {"filename": "report.pdf", "file_data": "data:application/pdf;base64,JVBE"}}
		]
	}`, string(data))
}

func TestMessageUnmarshalKeepsShape(t *testing.T) {
	var plain Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"assistant","content":"hi"}`), &plain))
	assert.Equal(t, AssistantMessage("hi"), plain)
	assert.False(t, plain.IsMultipart())

	var multi Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":[{"type":"text","text":"a"},{"type":"image_url","image_url":{"url":"data:image/png;base64,AA=="}}]}`), &multi))
	require.True(t, multi.IsMultipart())
	assert.Equal(t, []ContentBlock{TextBlock("a"), ImageBlock("data:image/png;base64,AA==")}, multi.Blocks)
}

func TestContentBlockRejectsUnknownType(t *testing.T) {
	_, err := json.Marshal(ContentBlock{Type: "audio"})
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	var b ContentBlock
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"type":"audio"}`), &b), ErrUnsupportedContent)
}

func TestMessageText(t *testing.T) {
	msg := UserBlocksMessage([]ContentBlock{
		TextBlock("first"),
		ImageBlock("data:image/png;base64,AA=="),
		TextBlock("second"),
	})
	assert.Equal(t, "first\nsecond", msg.Text())
	assert.Equal(t, "plain", UserMessage("plain").Text())
}

func TestParseDataURL(t *testing.T) {
	mimeType, data, err := ParseDataURL("data:application/pdf;base64,JVBERi0=")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mimeType)
	assert.Equal(t, "JVBERi0=", data)

	for _, bad := range []string{
		"https://example.com/a.png",
		"data:image/png;base64",
		"data:text/plain,hello",
	} {
		_, _, err := ParseDataURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		SystemMessage("be brief"),
		UserMessage("q"),
		AssistantMessage("a"),
	})
	assert.Equal(t, "be brief", system)
	assert.Equal(t, []Message{UserMessage("q"), AssistantMessage("a")}, rest)
}
