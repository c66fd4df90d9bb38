package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// ErrNotFound はドキュメントが存在しない場合のエラー
var ErrNotFound = errors.New("document not found")

// ProcessingStatus はドキュメントの処理状態を表す
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Document は取り込まれたドキュメントを表す。
// アップロード時に作成され、取り込み処理の進行に応じて更新される。
// completed 以降は要約の再生成を除いて不変。
type Document struct {
	ID            uuid.UUID
	Name          string
	Status        ProcessingStatus
	StatusMessage mo.Option[string]
	PageCount     mo.Option[int]
	WordCount     int
	ChunkCount    int
	Summary       mo.Option[string]
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   mo.Option[time.Time]
}

// Chunk はドキュメントの1チャンクを表す。取り込み時に一括作成され、以降不変。
// ドキュメント削除時にカスケード削除される。
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Content    string
	ChunkIndex int
	PageNumber mo.Option[int]
	StartChar  int
	EndChar    int
	Embedding  []float32
	CreatedAt  time.Time
}
