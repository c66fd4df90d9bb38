package llm

import "context"

// Role はメッセージの話者種別を表す
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message はLLMに渡すロール付きメッセージを表す
type Message struct {
	Role    Role
	Content string
}

// Usage はLLM呼び出し1回分のトークン使用量
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion はLLMの生成結果を表す
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

// Client はLLM通信インターフェース。
// ストリーミングは使用しない。プロバイダのエラーは単一のエラーとして返す。
type Client interface {
	Generate(ctx context.Context, messages []Message) (*Completion, error)
}
