package ingestion

import (
	"github.com/samber/mo"
)

// IngestParams はドキュメント取り込みのパラメータ。
// Pages はページ単位に抽出済みの本文テキスト（抽出自体は呼び出し側の責務）。
type IngestParams struct {
	Name  string
	Pages []string
}

// ExtractionStats は本文抽出後に確定する統計値
type ExtractionStats struct {
	PageCount mo.Option[int]
	WordCount int
}
