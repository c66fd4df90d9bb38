package classify

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// documentKeywords はドキュメント全体への質問を示すフレーズ
var documentKeywords = []string{
	"summary", "summarize", "summarise", "overview", "main points",
	"what is this document about", "what's this document about",
	"what are the key points", "main topics", "document about",
	"overall", "general", "brief",
}

// followUpKeywords は直前の会話への追問を示すフレーズ（履歴がある場合のみ有効）
var followUpKeywords = []string{
	"tell me more", "more about", "elaborate", "explain that",
	"what else", "anything else", "continue", "go on",
	"can you expand", "more details", "more information",
}

// continuationWords は短い質問での文脈参照語
var continuationWords = []string{"this", "that", "it", "more", "why", "how"}

// shortQueryWordLimit はフォローアップとみなす短文の語数上限
const shortQueryWordLimit = 4

// ClassifySimple はLLMを呼ばないルールベースの分類。
// 精度は落ちるが高速で決定的。キーワードは先勝ちで評価する。
func ClassifySimple(query string, hasHistory bool) Result {
	queryLower := strings.ToLower(strings.TrimSpace(query))

	for _, keyword := range documentKeywords {
		if strings.Contains(queryLower, keyword) {
			return Result{
				QueryType:  QueryTypeDocumentLevel,
				Confidence: 0.8,
				Reasoning:  fmt.Sprintf("Query contains document-level keyword: %q", keyword),
			}
		}
	}

	if hasHistory {
		for _, keyword := range followUpKeywords {
			if strings.Contains(queryLower, keyword) {
				return Result{
					QueryType:       QueryTypeFollowUp,
					Confidence:      0.8,
					Reasoning:       fmt.Sprintf("Query contains follow-up keyword: %q", keyword),
					ReferencedTopic: mo.Some("previous topic"),
				}
			}
		}

		// 履歴がある状態での極端に短い質問はフォローアップの可能性が高い
		if len(strings.Fields(query)) <= shortQueryWordLimit && containsAny(queryLower, continuationWords) {
			return Result{
				QueryType:       QueryTypeFollowUp,
				Confidence:      0.6,
				Reasoning:       "Short query with context reference",
				ReferencedTopic: mo.Some("previous topic"),
			}
		}
	}

	return Result{
		QueryType:   QueryTypeChunkRetrieval,
		Confidence:  0.7,
		Reasoning:   "Query appears to be a specific topic search",
		SearchQuery: mo.Some(query),
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
