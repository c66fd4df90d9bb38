package chat

import (
	"errors"
	"fmt"
)

// ErrChatNotFound はチャットが存在しない場合のエラー
var ErrChatNotFound = errors.New("chat not found")

// ErrEmptyRetrieval は一次取得とフォールバック再試行の両方が空だった場合のエラー。
// 回答の根拠が何もないため、空の回答を返す代わりに質問全体を失敗させる。
var ErrEmptyRetrieval = errors.New("no relevant content found in documents")

// InvalidStateError はチャットまたはドキュメントが質問を受け付けられない状態を表す
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// GenerationError はLLMプロバイダ呼び出し自体の失敗を表す。
// 呼び出し側で再試行可能。発生時は永続化前なので部分的なメッセージは残らない。
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate answer: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
