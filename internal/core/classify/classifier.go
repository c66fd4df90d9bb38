package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/mo"

	"github.com/jinford/docvault/internal/core/llm"
)

const (
	// DefaultHistoryWindow は分類プロンプトに含める履歴件数の既定値
	DefaultHistoryWindow = 10

	// historyContentLimit は分類用に整形する各メッセージの文字数上限
	historyContentLimit = 500
)

// Classifier は質問をクエリタイプに分類する（パイプラインのStage 1）
type Classifier struct {
	llm           llm.Client
	historyWindow int
	logger        *slog.Logger
}

// Option は Classifier のオプション設定
type Option func(*Classifier)

// WithHistoryWindow は分類プロンプトに含める履歴件数を上書きする
func WithHistoryWindow(n int) Option {
	return func(c *Classifier) {
		c.historyWindow = n
	}
}

// WithLogger は Classifier にロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// NewClassifier は新しい Classifier を作成する
func NewClassifier(client llm.Client, opts ...Option) *Classifier {
	c := &Classifier{
		llm:           client,
		historyWindow: DefaultHistoryWindow,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Classify はLLMで質問を分類する。
// 分類はエラーを返さない。LLM呼び出しに失敗した場合は決定的に
// chunk_retrieval（confidence 0.5、search_query は質問文そのまま）へ倒す。
func (c *Classifier) Classify(ctx context.Context, query string, history []llm.Message) Result {
	prompt := buildClassificationPrompt(formatHistory(history, c.historyWindow), query)

	c.logger.Info("classifying query", "query", truncate(query, 100))

	completion, err := c.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		c.logger.Error("query classification failed, defaulting to chunk retrieval", "error", err)
		return Result{
			QueryType:   QueryTypeChunkRetrieval,
			Confidence:  0.5,
			Reasoning:   fmt.Sprintf("Classification failed, defaulting to chunk retrieval: %v", err),
			SearchQuery: mo.Some(query),
		}
	}

	result := parseClassification(completion.Content, query)

	c.logger.Info("query classified",
		"queryType", string(result.QueryType),
		"confidence", result.Confidence,
	)

	return result
}

// formatHistory は直近の会話履歴を分類プロンプト用に整形する
func formatHistory(history []llm.Message, max int) string {
	if len(history) == 0 {
		return "No previous conversation."
	}

	if len(history) > max {
		history = history[len(history)-max:]
	}

	parts := make([]string, 0, len(history))
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == llm.RoleUser {
			role = "User"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", role, truncate(msg.Content, historyContentLimit)))
	}

	return strings.Join(parts, "\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
