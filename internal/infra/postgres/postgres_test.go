package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docvault/internal/core/chat"
	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/ingestion"
	"github.com/jinford/docvault/internal/core/llm"
)

// setupTestDB は pgvector 入りの PostgreSQL コンテナを起動してプールを返す。
// Docker が利用できない環境ではテストをスキップする。
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "pgvector/pgvector",
		Tag:        "pg16",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=docvault_test",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })

	connString := fmt.Sprintf(
		"host=localhost port=%s user=test password=test dbname=docvault_test sslmode=disable",
		resource.GetPort("5432/tcp"),
	)

	var dbPool *pgxpool.Pool
	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var retryErr error
		dbPool, retryErr = pgxpool.New(ctx, connString)
		if retryErr != nil {
			return retryErr
		}
		return dbPool.Ping(ctx)
	})
	require.NoError(t, err)
	t.Cleanup(dbPool.Close)

	require.NoError(t, Migrate(context.Background(), dbPool))
	return dbPool
}

func ingestTestDocument(t *testing.T, repo *DocumentRepository, name string) *document.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := repo.CreateDocument(ctx, name)
	require.NoError(t, err)

	chunks := []*document.Chunk{
		{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Content:    "alpha content",
			ChunkIndex: 0,
			PageNumber: mo.Some(1),
			EndChar:    13,
			Embedding:  unitVector(0),
		},
		{
			ID:         uuid.New(),
			DocumentID: doc.ID,
			Content:    "beta content",
			ChunkIndex: 1,
			StartChar:  15,
			EndChar:    27,
			Embedding:  unitVector(1),
		},
	}

	require.NoError(t, repo.MarkProcessing(ctx, doc.ID, "Creating chunks..."))
	require.NoError(t, repo.SetExtractionStats(ctx, doc.ID, ingestion.ExtractionStats{PageCount: mo.Some(2), WordCount: 4}))
	require.NoError(t, repo.StoreChunks(ctx, chunks))
	require.NoError(t, repo.MarkCompleted(ctx, doc.ID, len(chunks)))

	doc, err = repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	return doc
}

// unitVector は1536次元の単位ベクトル（axis 番目の成分のみ1）を返す
func unitVector(axis int) []float32 {
	v := make([]float32, 1536)
	v[axis] = 1
	return v
}

func TestDocumentLifecycle(t *testing.T) {
	dbPool := setupTestDB(t)
	repo := NewDocumentRepository(dbPool)
	ctx := context.Background()

	doc := ingestTestDocument(t, repo, "manual.pdf")

	assert.Equal(t, document.StatusCompleted, doc.Status)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.Equal(t, 2, doc.PageCount.OrElse(0))
	assert.True(t, doc.ProcessedAt.IsPresent())
	assert.True(t, doc.StatusMessage.IsAbsent())

	require.NoError(t, repo.SetSummary(ctx, doc.ID, "A short summary"))
	doc, err := repo.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "A short summary", doc.Summary.OrElse(""))

	chunks, err := repo.ListLeadingChunks(ctx, doc.ID, 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha content", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageNumber.OrElse(0))

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	require.NoError(t, repo.DeleteDocument(ctx, doc.ID))
	_, err = repo.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteDocument(ctx, uuid.New()), document.ErrNotFound)
}

func TestSearchChunksRanksBySimilarity(t *testing.T) {
	dbPool := setupTestDB(t)
	repo := NewDocumentRepository(dbPool)
	search := NewSearchRepository(dbPool)
	ctx := context.Background()

	doc := ingestTestDocument(t, repo, "manual.pdf")
	other := ingestTestDocument(t, repo, "other.pdf")

	// axis 0 に一致するクエリベクトルでは alpha が最上位
	results, err := search.SearchChunks(ctx, unitVector(0), []uuid.UUID{doc.ID}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "alpha content", results[0].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, "manual.pdf", results[0].DocumentName)

	// 他ドキュメントのチャンクは対象に含まれない
	for _, result := range results {
		assert.Equal(t, doc.ID, result.Chunk.DocumentID)
	}

	// limit の尊重
	results, err = search.SearchChunks(ctx, unitVector(0), []uuid.UUID{doc.ID, other.ID}, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChatLifecycleAndExchangeWrite(t *testing.T) {
	dbPool := setupTestDB(t)
	docRepo := NewDocumentRepository(dbPool)
	chatRepo := NewChatRepository(dbPool)
	ctx := context.Background()

	doc := ingestTestDocument(t, docRepo, "manual.pdf")

	c, err := chatRepo.CreateChat(ctx, []uuid.UUID{doc.ID}, mo.None[string]())
	require.NoError(t, err)
	assert.True(t, c.Title.IsAbsent())
	require.Len(t, c.DocumentIDs, 1)
	require.Len(t, c.Documents, 1)
	assert.Equal(t, "manual.pdf", c.Documents[0].Name)

	chunks, err := docRepo.ListLeadingChunks(ctx, doc.ID, 1)
	require.NoError(t, err)

	// 1往復分の原子的書き込み
	store := NewExchangeStore(dbPool)
	now := time.Now().UTC()

	userMsg := &chat.Message{
		ID:                uuid.New(),
		ChatID:            c.ID,
		Role:              llm.RoleUser,
		Content:           "what is alpha?",
		CreatedAt:         now,
		RetrievedChunkIDs: []uuid.UUID{chunks[0].ID},
	}
	assistantMsg := &chat.Message{
		ID:        uuid.New(),
		ChatID:    c.ID,
		Role:      llm.RoleAssistant,
		Content:   "alpha is the first chunk",
		CreatedAt: now.Add(time.Millisecond),
	}

	require.NoError(t, store.InsertMessage(ctx, userMsg))
	require.NoError(t, store.InsertMessage(ctx, assistantMsg))
	require.NoError(t, store.InsertUsageLog(ctx, &chat.UsageLog{
		ID:           uuid.New(),
		ChatID:       mo.Some(c.ID),
		MessageID:    mo.Some(assistantMsg.ID),
		APIType:      chat.APITypeChatCompletion,
		Model:        "gpt-4o-mini",
		InputContent: "prompt",
		InputTokens:  10,
		OutputTokens: 5,
		CreatedAt:    now,
	}))
	require.NoError(t, store.SetChatTitle(ctx, c.ID, "what is alpha?"))

	loaded, err := chatRepo.GetChat(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "what is alpha?", loaded.Title.OrElse(""))
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, llm.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, []uuid.UUID{chunks[0].ID}, loaded.Messages[0].RetrievedChunkIDs)
	assert.Empty(t, loaded.Messages[1].RetrievedChunkIDs)

	chats, err := chatRepo.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, []uuid.UUID{doc.ID}, chats[0].DocumentIDs)

	require.NoError(t, chatRepo.DeleteChat(ctx, c.ID))
	_, err = chatRepo.GetChat(ctx, c.ID)
	assert.ErrorIs(t, err, chat.ErrChatNotFound)
}
