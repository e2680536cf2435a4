package payload

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/polyllm/extract"
	"github.com/richinex/polyllm/llm"
)

// fakeExtractor returns "md(<name>)" for every file and records the calls.
type fakeExtractor struct {
	calls []string
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, filename, _ string) (string, error) {
	f.calls = append(f.calls, filename)
	if f.err != nil {
		return "", f.err
	}
	return "md(" + filename + ")", nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestBuildUserContentOrdering(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "fileA.png", "png-bytes")
	pdf := writeFile(t, dir, "fileB.pdf", "pdf-bytes")

	b := NewBuilder(nil, nil)
	blocks, err := b.BuildUserContent(context.Background(), "hi", []FileRef{Path(png), Path(pdf)}, false)
	require.NoError(t, err)

	require.Len(t, blocks, 3)
	assert.Equal(t, llm.TextBlock("hi"), blocks[0])
	assert.Equal(t, llm.ImageBlock("data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("png-bytes"))), blocks[1])
	assert.Equal(t, llm.FileBlock("fileB.pdf", "data:application/pdf;base64,"+base64.StdEncoding.EncodeToString([]byte("pdf-bytes"))), blocks[2])
}

func TestBuildUserContentPreprocessMerge(t *testing.T) {
	ex := &fakeExtractor{}
	b := NewBuilder(ex, nil)

	blocks, err := b.BuildUserContent(context.Background(), "hi", []FileRef{
		Inline("file1.pdf", "AAAA"),
		Inline("file2.docx", "BBBB"),
	}, true)
	require.NoError(t, err)
	require.Len(t, blocks, 1)

	want := "hi\n" +
		"\n<<<FILE CONTENT (file1.pdf)>>>\nmd(file1.pdf)\n<<<END FILE CONTENT>>>\n" +
		"\n" +
		"\n<<<FILE CONTENT (file2.docx)>>>\nmd(file2.docx)\n<<<END FILE CONTENT>>>\n"
	assert.Equal(t, llm.TextBlock(want), blocks[0])
	assert.Equal(t, []string{"file1.pdf", "file2.docx"}, ex.calls)
}

func TestBuildUserContentPreprocessWithoutText(t *testing.T) {
	b := NewBuilder(&fakeExtractor{}, nil)

	blocks, err := b.BuildUserContent(context.Background(), "", []FileRef{Inline("a.pdf", "AAAA")}, true)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, strings.HasPrefix(blocks[0].Text, "\n<<<FILE CONTENT (a.pdf)>>>"))
}

func TestBuildUserContentExtractionErrorSurfaces(t *testing.T) {
	b := NewBuilder(nil, nil)
	_, err := b.BuildUserContent(context.Background(), "hi", []FileRef{Inline("a.pdf", "AAAA")}, true)
	assert.ErrorIs(t, err, extract.ErrUnavailable)

	failing := &fakeExtractor{err: extract.ErrFailed}
	_, err = NewBuilder(failing, nil).BuildUserContent(context.Background(), "hi", []FileRef{Inline("a.pdf", "AAAA")}, true)
	assert.ErrorIs(t, err, extract.ErrFailed)
}

func TestBuildUserContentMissingInput(t *testing.T) {
	b := NewBuilder(nil, nil)

	_, err := b.BuildUserContent(context.Background(), "", nil, false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = b.BuildUserContent(context.Background(), "", []FileRef{{}}, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildUserContentTextOnly(t *testing.T) {
	blocks, err := NewBuilder(nil, nil).BuildUserContent(context.Background(), "just text", nil, true)
	require.NoError(t, err)
	assert.Equal(t, []llm.ContentBlock{llm.TextBlock("just text")}, blocks)
}

func TestBuildUserContentUnknownTypeIsGenericFile(t *testing.T) {
	blocks, err := NewBuilder(nil, nil).BuildUserContent(context.Background(), "", []FileRef{Inline("blob.zzzunknown", "AAAA")}, false)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, llm.FileBlock("blob.zzzunknown", "data:application/octet-stream;base64,AAAA"), blocks[0])
}

func TestBuildPayload(t *testing.T) {
	b := NewBuilder(nil, nil)
	history := []llm.Message{llm.UserMessage("q1"), llm.AssistantMessage("a1")}

	msgs, err := b.BuildPayload(context.Background(), PayloadInput{
		UserText:     "q2",
		SystemPrompt: "sys",
		History:      history,
	})
	require.NoError(t, err)
	assert.Equal(t, []llm.Message{
		llm.SystemMessage("sys"),
		llm.UserMessage("q1"),
		llm.AssistantMessage("a1"),
		llm.UserBlocksMessage([]llm.ContentBlock{llm.TextBlock("q2")}),
	}, msgs)
}

func TestBuildPayloadWithoutSystemPrompt(t *testing.T) {
	msgs, err := NewBuilder(nil, nil).BuildPayload(context.Background(), PayloadInput{UserText: "hello"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
}

func TestBuildPayloadSingleSystemMessage(t *testing.T) {
	msgs, err := NewBuilder(nil, nil).BuildPayload(context.Background(), PayloadInput{
		UserText:     "q",
		SystemPrompt: "new",
		History:      []llm.Message{llm.SystemMessage("old"), llm.UserMessage("x")},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.SystemMessage("new"), msgs[0])
	assert.Equal(t, llm.UserMessage("x"), msgs[1])
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "hello.txt", "hello")

	f, err := Resolve(Path(p))
	require.NoError(t, err)
	assert.Equal(t, ResolvedFile{Filename: "hello.txt", Data: "aGVsbG8="}, f)

	_, err = Resolve(Path(filepath.Join(dir, "missing.txt")))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(Path(dir))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Resolve(Inline("", "AAAA"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	f, err = Resolve(Inline("x.bin", "AAAA"))
	require.NoError(t, err)
	assert.Equal(t, ResolvedFile{Filename: "x.bin", Data: "AAAA"}, f)
}

func TestResolveAllStopsAtFirstError(t *testing.T) {
	_, err := ResolveAll([]FileRef{Inline("a", "A"), Path("/definitely/not/here"), Inline("b", "B")})
	assert.True(t, errors.Is(err, ErrNotFound))

	files, err := ResolveAll(nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestFileRefName(t *testing.T) {
	assert.Equal(t, "c.pdf", Path("/a/b/c.pdf").Name())
	assert.Equal(t, "d.png", Inline("d.png", "").Name())
	assert.True(t, FileRef{}.IsZero())
	assert.True(t, Inline("d.png", "").IsInline())
}
