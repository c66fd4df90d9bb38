package ingestion

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/document"
)

const (
	// DefaultChunkSize は1チャンクの目安文字数
	DefaultChunkSize = 1000

	// DefaultChunkOverlap はチャンク間で引き継ぐ文字数
	DefaultChunkOverlap = 200

	// tokenEncoding はトークン数計測に使うエンコーディング
	tokenEncoding = "cl100k_base"
)

// sentence は分割済みの1文と元テキスト内での開始位置
type sentence struct {
	text  string
	start int
}

// Chunker はドキュメント本文を文境界を考慮してチャンクに分割する
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	encoder      *tiktoken.Tiktoken
}

// NewChunker は新しい Chunker を作成する
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}

	encoder, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding: %w", err)
	}

	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		encoder:      encoder,
	}, nil
}

// CountTokens はテキストのトークン数を返す。
// エンコーダ未初期化時は語数で近似する。
func (c *Chunker) CountTokens(text string) int {
	if c.encoder == nil {
		return len(strings.Fields(text))
	}
	return len(c.encoder.Encode(text, nil, nil))
}

// ChunkPages はページごとのテキストをチャンク列に変換する。
// ページ境界をまたぐチャンクは作らない。複数ページの場合のみページ番号を付与する。
// 文字スパンは全ページを連結したテキスト内のオフセット。
func (c *Chunker) ChunkPages(documentID uuid.UUID, pages []string) []*document.Chunk {
	var chunks []*document.Chunk

	offset := 0
	index := 0
	withPageNumbers := len(pages) > 1

	for pageIdx, page := range pages {
		pageNumber := mo.None[int]()
		if withPageNumbers {
			pageNumber = mo.Some(pageIdx + 1)
		}

		for _, piece := range c.chunkText(page) {
			chunks = append(chunks, &document.Chunk{
				ID:         uuid.New(),
				DocumentID: documentID,
				Content:    piece.text,
				ChunkIndex: index,
				PageNumber: pageNumber,
				StartChar:  offset + piece.start,
				EndChar:    offset + piece.start + len(piece.text),
			})
			index++
		}

		// ページ間は2文字の区切り（"\n\n"）を挟んで連結した扱いにする
		offset += len(page) + 2
	}

	return chunks
}

// chunkText は1ページ分のテキストを文単位で目安サイズまで詰めて分割する
func (c *Chunker) chunkText(text string) []sentence {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var pieces []sentence

	var current []sentence
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}

		var sb strings.Builder
		for i, s := range current {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(s.text)
		}
		pieces = append(pieces, sentence{text: sb.String(), start: current[0].start})

		// オーバーラップ分の末尾の文を次チャンクに引き継ぐ
		var carried []sentence
		carriedLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			if carriedLen+len(current[i].text) > c.chunkOverlap {
				break
			}
			carriedLen += len(current[i].text)
			carried = append([]sentence{current[i]}, carried...)
		}
		current = carried
		currentLen = carriedLen
	}

	for _, s := range sentences {
		// 1文がチャンクサイズを超える場合は文字単位で強制分割する
		if len(s.text) > c.chunkSize {
			flush()
			current = nil
			currentLen = 0
			for _, part := range hardSplit(s, c.chunkSize) {
				pieces = append(pieces, part)
			}
			continue
		}

		if currentLen+len(s.text) > c.chunkSize && currentLen > 0 {
			flush()
		}

		current = append(current, s)
		currentLen += len(s.text)
	}

	if currentLen > 0 {
		flush()
	}

	return pieces
}

// splitSentences はテキストを文とその開始位置に分割する
func splitSentences(text string) []sentence {
	var sentences []sentence

	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		terminal := ch == '.' || ch == '!' || ch == '?' || ch == '\n'
		if !terminal {
			continue
		}

		// 終端記号の連続（"..." や "!?"）は1つの終端として扱う
		end := i + 1
		for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?' || text[end] == '\n') {
			end++
		}

		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, sentence{text: s, start: start + leadingSpace(text[start:end])})
		}
		start = end
		i = end - 1
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, sentence{text: s, start: start + leadingSpace(text[start:])})
	}

	return sentences
}

func hardSplit(s sentence, size int) []sentence {
	var parts []sentence
	for pos := 0; pos < len(s.text); pos += size {
		end := pos + size
		if end > len(s.text) {
			end = len(s.text)
		}
		parts = append(parts, sentence{text: s.text[pos:end], start: s.start + pos})
	}
	return parts
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\n\r"))
}
