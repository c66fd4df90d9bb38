package classify

import "github.com/samber/mo"

// QueryType は質問の分類タイプを表す閉じた列挙。
// ルーターとコンテキストビルダーの分岐点はこの4値で網羅される。
type QueryType string

const (
	// QueryTypeDocumentLevel はドキュメント全体についての質問（要約・概要・主題）
	QueryTypeDocumentLevel QueryType = "document_level"

	// QueryTypeFollowUp は新しいトピックを持たず直前の会話に依存する質問
	QueryTypeFollowUp QueryType = "follow_up"

	// QueryTypeChunkRetrieval はドキュメント内容の検索を要する自己完結した質問
	QueryTypeChunkRetrieval QueryType = "chunk_retrieval"

	// QueryTypeMixed は会話文脈と新規検索の両方を要する質問
	QueryTypeMixed QueryType = "mixed"
)

// Valid はクエリタイプが既知の4値のいずれかであるかを返す
func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeDocumentLevel, QueryTypeFollowUp, QueryTypeChunkRetrieval, QueryTypeMixed:
		return true
	}
	return false
}

// Result は質問分類の結果を表す。質問ごとに生成される一時データで永続化されない。
type Result struct {
	QueryType  QueryType
	Confidence float64 // [0,1]
	Reasoning  string

	// ReferencedTopic は follow_up/mixed で履歴中のどのトピックを参照しているか
	ReferencedTopic mo.Option[string]

	// SearchQuery は chunk_retrieval/mixed 用に書き換えられた検索クエリ
	SearchQuery mo.Option[string]
}

// SearchQueryOr は書き換え済みクエリがあればそれを、なければ fallback を返す
func (r Result) SearchQueryOr(fallback string) string {
	return r.SearchQuery.OrElse(fallback)
}
