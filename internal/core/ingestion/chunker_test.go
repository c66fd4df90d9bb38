package ingestion

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テストではBPE辞書の取得を避けるため直接構築する
func testChunker(size, overlap int) *Chunker {
	return &Chunker{chunkSize: size, chunkOverlap: overlap}
}

func TestChunkPagesSinglePage(t *testing.T) {
	chunker := testChunker(50, 10)
	docID := uuid.New()

	chunks := chunker.ChunkPages(docID, []string{
		"First sentence here. Second sentence follows. Third one is last.",
	})

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, docID, chunk.DocumentID)
		assert.Equal(t, i, chunk.ChunkIndex)
		// 単一ページの場合はページ番号を付与しない
		assert.True(t, chunk.PageNumber.IsAbsent())
		assert.LessOrEqual(t, chunk.StartChar, chunk.EndChar)
	}
}

func TestChunkPagesMultiPageAssignsPageNumbers(t *testing.T) {
	chunker := testChunker(1000, 200)

	chunks := chunker.ChunkPages(uuid.New(), []string{
		"Page one content. More of page one.",
		"Page two content. More of page two.",
	})

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].PageNumber.OrElse(0))
	assert.Equal(t, 2, chunks[1].PageNumber.OrElse(0))
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

// チャンクはページ境界をまたがない
func TestChunkPagesDoesNotCrossPageBoundary(t *testing.T) {
	chunker := testChunker(1000, 200)

	chunks := chunker.ChunkPages(uuid.New(), []string{"Short page one.", "Short page two."})

	require.Len(t, chunks, 2)
	assert.Equal(t, "Short page one.", chunks[0].Content)
	assert.Equal(t, "Short page two.", chunks[1].Content)
}

func TestChunkTextRespectsChunkSize(t *testing.T) {
	chunker := testChunker(100, 20)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("This is a sentence of reasonable length. ")
	}

	chunks := chunker.ChunkPages(uuid.New(), []string{sb.String()})

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		// 1文がサイズ内なら、チャンクはサイズ+結合スペース程度に収まる
		assert.LessOrEqual(t, len(chunk.Content), 100+10)
	}
}

// チャンク間で末尾の文がオーバーラップとして引き継がれる
func TestChunkTextOverlapCarriesTrailingSentence(t *testing.T) {
	chunker := testChunker(60, 30)

	chunks := chunker.ChunkPages(uuid.New(), []string{
		"Alpha sentence one here. Beta sentence two here. Gamma sentence three here.",
	})

	require.Greater(t, len(chunks), 1)
	first, second := chunks[0].Content, chunks[1].Content

	// 先頭チャンクの末尾の文が次チャンクの先頭に現れる
	lastSentence := first[strings.LastIndex(first[:len(first)-1], ".")+1:]
	lastSentence = strings.TrimSpace(lastSentence)
	if lastSentence != "" {
		assert.True(t, strings.HasPrefix(second, lastSentence),
			"second chunk %q should start with %q", second, lastSentence)
	}
}

func TestChunkTextHardSplitsOversizedSentence(t *testing.T) {
	chunker := testChunker(50, 10)

	long := strings.Repeat("x", 170)
	chunks := chunker.ChunkPages(uuid.New(), []string{long})

	require.Len(t, chunks, 4)
	for i, chunk := range chunks[:3] {
		assert.Len(t, chunk.Content, 50)
		assert.Equal(t, i*50, chunk.StartChar)
	}
	assert.Len(t, chunks[3].Content, 20)
}

func TestChunkPagesEmptyInput(t *testing.T) {
	chunker := testChunker(100, 20)

	assert.Empty(t, chunker.ChunkPages(uuid.New(), nil))
	assert.Empty(t, chunker.ChunkPages(uuid.New(), []string{"", "   "}))
}

func TestSplitSentencesPositions(t *testing.T) {
	sentences := splitSentences("One. Two! Three?")

	require.Len(t, sentences, 3)
	assert.Equal(t, "One.", sentences[0].text)
	assert.Equal(t, "Two!", sentences[1].text)
	assert.Equal(t, "Three?", sentences[2].text)
	assert.Equal(t, 0, sentences[0].start)
	assert.Equal(t, 5, sentences[1].start)
	assert.Equal(t, 10, sentences[2].start)
}

// 連続する終端記号は1つの終端として扱う
func TestSplitSentencesEllipsis(t *testing.T) {
	sentences := splitSentences("Wait... Really?!")

	require.Len(t, sentences, 2)
	assert.Equal(t, "Wait...", sentences[0].text)
	assert.Equal(t, "Really?!", sentences[1].text)
}

func TestCountTokensFallsBackToWords(t *testing.T) {
	chunker := testChunker(100, 20)
	assert.Equal(t, 4, chunker.CountTokens("one two three four"))
}
