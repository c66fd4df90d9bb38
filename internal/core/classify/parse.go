package classify

import (
	"strconv"
	"strings"

	"github.com/samber/mo"
)

// parseClassification はLLMの生の応答テキストを Result に変換する純粋関数。
// モデル出力は非決定的なので、全フィールドに既定値を定義し解析失敗でも必ず値を返す。
func parseClassification(raw, query string) Result {
	result := Result{
		QueryType:   QueryTypeChunkRetrieval,
		Confidence:  0.5,
		Reasoning:   "Unable to parse classification",
		SearchQuery: mo.Some(query), // 既定は元の質問文
	}

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "QUERY_TYPE:"):
			result.QueryType = parseQueryType(valueAfterLabel(line))

		case strings.HasPrefix(line, "CONFIDENCE:"):
			if v, err := strconv.ParseFloat(valueAfterLabel(line), 64); err == nil {
				result.Confidence = clamp(v, 0.0, 1.0)
			}

		case strings.HasPrefix(line, "REASONING:"):
			result.Reasoning = valueAfterLabel(line)

		case strings.HasPrefix(line, "REFERENCED_TOPIC:"):
			if topic := valueAfterLabel(line); !strings.EqualFold(topic, "none") {
				result.ReferencedTopic = mo.Some(topic)
			}

		case strings.HasPrefix(line, "SEARCH_QUERY:"):
			if sq := valueAfterLabel(line); sq != "" && !strings.EqualFold(sq, "none") {
				result.SearchQuery = mo.Some(sq)
			}
		}
	}

	return result
}

// parseQueryType はラベル文字列をクエリタイプに解決する。
// 未知のラベルは部分一致で照合し、それでも不明なら chunk_retrieval に倒す。
func parseQueryType(s string) QueryType {
	normalized := strings.ToUpper(strings.TrimSpace(s))

	if t := QueryType(strings.ToLower(normalized)); t.Valid() {
		return t
	}

	switch {
	case strings.Contains(normalized, "DOCUMENT"):
		return QueryTypeDocumentLevel
	case strings.Contains(normalized, "FOLLOW"):
		return QueryTypeFollowUp
	case strings.Contains(normalized, "MIXED"):
		return QueryTypeMixed
	}

	return QueryTypeChunkRetrieval
}

func valueAfterLabel(line string) string {
	_, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(value)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
