package prompt

import (
	"fmt"
	"strings"

	"github.com/jinford/docvault/internal/core/retrieval"
)

// blockSeparator はプロンプト内の情報ブロック間の区切り
const blockSeparator = "\n\n---\n\n"

// formatDocumentSummaries はドキュメント要約をプロンプト用に整形する
func formatDocumentSummaries(summaries []retrieval.DocumentSummary) string {
	parts := make([]string, 0, len(summaries))

	for i, summary := range summaries {
		pages := "N/A"
		if p, ok := summary.PageCount.Get(); ok {
			pages = fmt.Sprintf("%d", p)
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("[Document %d: %s]\n", i+1, summary.DocumentName))
		sb.WriteString(fmt.Sprintf("- Pages: %s\n", pages))
		sb.WriteString(fmt.Sprintf("- Words: %d\n", summary.WordCount))
		sb.WriteString("\nSummary:\n")
		sb.WriteString(summary.Summary)

		parts = append(parts, sb.String())
	}

	return strings.Join(parts, blockSeparator)
}

// formatChunks は取得チャンクをプロンプト用に整形する。
// フォーマットはチャンクを埋め込む全箇所で共通:
// [Source i: ドキュメント名 (Page N)] [Relevance: スコア] の見出しに本文が続く。
func formatChunks(chunks []*retrieval.RetrievedChunk) string {
	parts := make([]string, 0, len(chunks))

	for i, rc := range chunks {
		pageInfo := ""
		if page, ok := rc.Chunk.PageNumber.Get(); ok {
			pageInfo = fmt.Sprintf(" (Page %d)", page)
		}

		parts = append(parts, fmt.Sprintf(
			"[Source %d: %s%s] [Relevance: %.2f]\n%s",
			i+1, rc.DocumentName, pageInfo, rc.Similarity, rc.Chunk.Content,
		))
	}

	return strings.Join(parts, blockSeparator)
}

// formatConversation は会話コンテキストをプロンプト用に整形する
func formatConversation(context []retrieval.ConversationMessage) string {
	parts := make([]string, 0, len(context))

	for _, msg := range context {
		parts = append(parts, fmt.Sprintf("%s: %s", capitalize(string(msg.Role)), msg.Content))
	}

	return strings.Join(parts, "\n\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
