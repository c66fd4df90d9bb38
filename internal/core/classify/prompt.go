package classify

import "fmt"

// classificationPrompt は分類用のインストラクションプロンプト。
// 応答は5フィールドの固定フォーマットで返させ、parseClassification で解析する。
const classificationPrompt = `You are a query classifier for a document Q&A system. Analyze the user's query and conversation history to determine the best retrieval strategy.

## Query Types:

1. **DOCUMENT_LEVEL**: Questions about the document as a whole.
   - Examples: "Summarize this document", "What is this document about?", "What are the main topics?"
   - Indicators: Words like "summary", "overview", "main points", "document", "overall"

2. **FOLLOW_UP**: Questions that reference previous conversation without introducing new topics.
   - Examples: "Tell me more", "Can you elaborate?", "What else?", "Explain that further"
   - Indicators: Pronouns like "that", "it", "this" without clear referent, continuation phrases

3. **CHUNK_RETRIEVAL**: Specific questions about topics that need searching the document.
   - Examples: "What is the pricing?", "How does feature X work?", "What are the requirements?"
   - Indicators: Specific nouns, technical terms, clear topic references

4. **MIXED**: Questions that need both conversation history AND new document search.
   - Examples: "How does this compare to what you mentioned about X?", "Is there more about the topic we discussed?"
   - Indicators: References to both past conversation AND needs new information

## Conversation History:
%s

## Current User Query:
%s

## Task:
Classify this query and respond in the following exact format:

QUERY_TYPE: <one of: DOCUMENT_LEVEL, FOLLOW_UP, CHUNK_RETRIEVAL, MIXED>
CONFIDENCE: <0.0-1.0>
REASONING: <brief explanation>
REFERENCED_TOPIC: <if FOLLOW_UP or MIXED, what topic from history is being referenced, else "none">
SEARCH_QUERY: <if CHUNK_RETRIEVAL or MIXED, the optimized search query to use for vector search, else "none">
`

// buildClassificationPrompt は履歴と質問を分類プロンプトに埋め込む
func buildClassificationPrompt(history, query string) string {
	return fmt.Sprintf(classificationPrompt, history, query)
}
