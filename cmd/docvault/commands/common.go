package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/docvault/internal/core/chat"
	"github.com/jinford/docvault/internal/core/classify"
	"github.com/jinford/docvault/internal/core/ingestion"
	"github.com/jinford/docvault/internal/core/prompt"
	"github.com/jinford/docvault/internal/core/retrieval"
	"github.com/jinford/docvault/internal/infra/openai"
	"github.com/jinford/docvault/internal/infra/postgres"
	"github.com/jinford/docvault/internal/platform/database"
	"github.com/jinford/docvault/internal/platform/logger"
	"github.com/jinford/docvault/pkg/config"
	"github.com/jinford/docvault/pkg/db"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Database  *db.DB
	Logger    *slog.Logger
	Documents *postgres.DocumentRepository
	Ingestion *ingestion.Service
	Chat      *chat.Service
}

// NewAppContext は設定ファイルを読み込み、DBに接続して AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
	})

	conn, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	llmClient, err := openai.NewClientWithAPIKey(cfg.OpenAI.APIKey, cfg.OpenAI.LLMModel)
	if err != nil {
		conn.Close()
		return nil, err
	}

	embedder := openai.NewEmbedder(cfg.OpenAI.APIKey,
		openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)

	docRepo := postgres.NewDocumentRepository(conn.Pool)
	searchRepo := postgres.NewSearchRepository(conn.Pool)
	chatRepo := postgres.NewChatRepository(conn.Pool)
	txProvider := database.NewTransactionProvider(conn.Pool)

	chunker, err := ingestion.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("チャンカーの初期化に失敗: %w", err)
	}

	ingestSvc := ingestion.NewService(docRepo, embedder, llmClient, chunker,
		ingestion.WithLogger(appLogger),
	)

	classifier := classify.NewClassifier(llmClient,
		classify.WithHistoryWindow(cfg.Retrieval.ClassifyHistoryWindow),
		classify.WithLogger(appLogger),
	)

	router := retrieval.NewRouter(searchRepo, docRepo, embedder,
		retrieval.WithConversationWindow(cfg.Retrieval.RouterConversationWindow),
		retrieval.WithLogger(appLogger),
	)

	builder := prompt.NewBuilder(
		prompt.WithWindows(prompt.Windows{
			FollowUp:       cfg.Retrieval.FollowUpHistoryWindow,
			ChunkRetrieval: cfg.Retrieval.ChunkRetrievalHistoryWindow,
			Mixed:          cfg.Retrieval.MixedHistoryWindow,
		}),
		prompt.WithLogger(appLogger),
	)

	chatSvc := chat.NewService(chatRepo, docRepo, classifier, router, builder, llmClient, txProvider,
		chat.WithLogger(appLogger),
	)

	return &AppContext{
		Config:    cfg,
		Database:  conn,
		Logger:    appLogger,
		Documents: docRepo,
		Ingestion: ingestSvc,
		Chat:      chatSvc,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}

// truncateString は表示用に文字列を切り詰める
func truncateString(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
