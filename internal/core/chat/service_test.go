package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/docvault/internal/core/classify"
	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/llm"
	"github.com/jinford/docvault/internal/core/prompt"
	"github.com/jinford/docvault/internal/core/retrieval"
)

// fakeChatRepo はメモリ上のチャットを返すテスト用リポジトリ
type fakeChatRepo struct {
	chats map[uuid.UUID]*Chat
}

func (f *fakeChatRepo) CreateChat(_ context.Context, documentIDs []uuid.UUID, title mo.Option[string]) (*Chat, error) {
	c := &Chat{ID: uuid.New(), Title: title, DocumentIDs: documentIDs}
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeChatRepo) GetChat(_ context.Context, id uuid.UUID) (*Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return nil, ErrChatNotFound
	}
	return c, nil
}

func (f *fakeChatRepo) ListChats(_ context.Context) ([]*Chat, error) {
	var chats []*Chat
	for _, c := range f.chats {
		chats = append(chats, c)
	}
	return chats, nil
}

func (f *fakeChatRepo) DeleteChat(_ context.Context, id uuid.UUID) error {
	if _, ok := f.chats[id]; !ok {
		return ErrChatNotFound
	}
	delete(f.chats, id)
	return nil
}

// fakeDocs は retrieval.DocumentReader のテスト用実装
type fakeDocs struct {
	docs map[uuid.UUID]*document.Document
}

func (f *fakeDocs) GetDocument(_ context.Context, id uuid.UUID) (*document.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

// fakeSearcher は呼び出しごとに結果キューを消費するテスト用サーチャ
type fakeSearcher struct {
	queue [][]*retrieval.RetrievedChunk
	calls int
}

func (f *fakeSearcher) SearchChunks(_ context.Context, _ []float32, _ []uuid.UUID, _ int) ([]*retrieval.RetrievedChunk, error) {
	f.calls++
	if len(f.queue) == 0 {
		return nil, nil
	}
	result := f.queue[0]
	f.queue = f.queue[1:]
	return result, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

// fakeStore は書き込みを記録するテスト用 ExchangeStore
type fakeStore struct {
	messages []*Message
	usage    []*UsageLog
	titles   map[uuid.UUID]string
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *Message) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) InsertUsageLog(_ context.Context, usage *UsageLog) error {
	f.usage = append(f.usage, usage)
	return nil
}

func (f *fakeStore) SetChatTitle(_ context.Context, chatID uuid.UUID, title string) error {
	if f.titles == nil {
		f.titles = make(map[uuid.UUID]string)
	}
	f.titles[chatID] = title
	return nil
}

// fakeTx はロールバックをシミュレートするテスト用 Transactor。
// fn がエラーを返した場合は store への書き込みを破棄する。
type fakeTx struct {
	store *fakeStore
}

func (f *fakeTx) ExchangeWrite(_ context.Context, fn func(ExchangeStore) error) error {
	staging := &fakeStore{}
	if err := fn(staging); err != nil {
		return err
	}
	f.store.messages = append(f.store.messages, staging.messages...)
	f.store.usage = append(f.store.usage, staging.usage...)
	for id, title := range staging.titles {
		if f.store.titles == nil {
			f.store.titles = make(map[uuid.UUID]string)
		}
		f.store.titles[id] = title
	}
	return nil
}

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Generate(_ context.Context, _ []llm.Message) (*llm.Completion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Completion{
		Content: f.content,
		Model:   "gpt-4o-mini",
		Usage:   llm.Usage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

// fixture は1チャット+1ドキュメントのテスト環境を組み立てる
type fixture struct {
	service  *Service
	chat     *Chat
	doc      *document.Document
	store    *fakeStore
	searcher *fakeSearcher
	llm      *fakeLLM
}

func newFixture(t *testing.T, chunks []*retrieval.RetrievedChunk) *fixture {
	t.Helper()

	doc := &document.Document{
		ID:     uuid.New(),
		Name:   "manual.pdf",
		Status: document.StatusCompleted,
	}

	c := &Chat{
		ID:          uuid.New(),
		DocumentIDs: []uuid.UUID{doc.ID},
		Documents:   []*document.Document{doc},
	}

	repo := &fakeChatRepo{chats: map[uuid.UUID]*Chat{c.ID: c}}
	docs := &fakeDocs{docs: map[uuid.UUID]*document.Document{doc.ID: doc}}
	searcher := &fakeSearcher{}
	if chunks != nil {
		searcher.queue = [][]*retrieval.RetrievedChunk{chunks}
	}

	llmClient := &fakeLLM{content: "the answer"}
	store := &fakeStore{}

	classifier := classify.NewClassifier(llmClient)
	router := retrieval.NewRouter(searcher, docs, fakeEmbedder{})
	builder := prompt.NewBuilder()

	service := NewService(repo, docs, classifier, router, builder, llmClient, &fakeTx{store: store})

	return &fixture{
		service:  service,
		chat:     c,
		doc:      doc,
		store:    store,
		searcher: searcher,
		llm:      llmClient,
	}
}

func someChunks(doc *document.Document, content string, similarity float64) []*retrieval.RetrievedChunk {
	return []*retrieval.RetrievedChunk{
		{
			Chunk: &document.Chunk{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				Content:    content,
			},
			Similarity:   similarity,
			DocumentName: doc.Name,
		},
	}
}

func TestAskPersistsExchangeAtomically(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f.doc, "relevant text", 0.87654)}

	result, err := f.service.Ask(context.Background(), AskParams{
		ChatID:   f.chat.ID,
		Question: "what does the manual say?",
	})
	require.NoError(t, err)

	assert.Equal(t, "the answer", result.Answer)
	assert.Equal(t, classify.QueryTypeChunkRetrieval, result.QueryType)
	assert.Equal(t, retrieval.StrategyVectorSearch, result.RetrievalStrategy)

	// ユーザー+アシスタントの2メッセージが書き込まれる
	require.Len(t, f.store.messages, 2)
	userMsg, assistantMsg := f.store.messages[0], f.store.messages[1]
	assert.Equal(t, llm.RoleUser, userMsg.Role)
	assert.Equal(t, "what does the manual say?", userMsg.Content)
	assert.Len(t, userMsg.RetrievedChunkIDs, 1)
	assert.Equal(t, llm.RoleAssistant, assistantMsg.Role)
	assert.Equal(t, "the answer", assistantMsg.Content)

	// 使用量ログはアシスタントメッセージに紐付く
	require.Len(t, f.store.usage, 1)
	usage := f.store.usage[0]
	assert.Equal(t, APITypeChatCompletion, usage.APIType)
	assert.Equal(t, assistantMsg.ID, usage.MessageID.OrElse(uuid.Nil))
	assert.Equal(t, 100, usage.InputTokens)
	assert.Equal(t, 20, usage.OutputTokens)

	// 最初の往復なのでタイトルが質問から自動生成される
	assert.Equal(t, "what does the manual say?", f.store.titles[f.chat.ID])

	// 類似度は4桁に丸められる
	require.Len(t, result.Sources, 1)
	assert.Equal(t, 0.8765, result.Sources[0].Similarity)
	assert.Equal(t, "manual.pdf", result.Sources[0].DocumentName)
}

// 往復の2メッセージは created_at で質問→回答の順に並ぶ。
// 同一タイムスタンプだと再読込時の順序がIDに依存してしまう。
func TestAskOrdersExchangeByCreatedAt(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f.doc, "text", 0.9)}

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})
	require.NoError(t, err)

	require.Len(t, f.store.messages, 2)
	userMsg, assistantMsg := f.store.messages[0], f.store.messages[1]
	assert.Equal(t, llm.RoleUser, userMsg.Role)
	assert.Equal(t, llm.RoleAssistant, assistantMsg.Role)
	assert.True(t, assistantMsg.CreatedAt.After(userMsg.CreatedAt),
		"assistant message must sort after the user message")
}

func TestAskTitleTruncatedAt100Runes(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f.doc, "text", 0.9)}

	question := strings.Repeat("q", 150)
	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: question})
	require.NoError(t, err)

	title := f.store.titles[f.chat.ID]
	assert.Equal(t, strings.Repeat("q", 100)+"...", title)
}

func TestAskKeepsExistingTitle(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f.doc, "text", 0.9)}
	f.chat.Title = mo.Some("existing title")

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})
	require.NoError(t, err)

	// タイトルの上書きは行われない
	_, ok := f.store.titles[f.chat.ID]
	assert.False(t, ok)
}

func TestAskSourceContentTruncatedAt500Runes(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f.doc, strings.Repeat("a", 600), 0.9)}

	result, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})
	require.NoError(t, err)

	require.Len(t, result.Sources, 1)
	assert.Equal(t, strings.Repeat("a", 500)+"...", result.Sources[0].ChunkContent)

	// 短い本文はそのまま
	f2 := newFixture(t, nil)
	f2.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f2.doc, strings.Repeat("b", 400), 0.9)}
	result2, err := f2.service.Ask(context.Background(), AskParams{ChatID: f2.chat.ID, Question: "question"})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 400), result2.Sources[0].ChunkContent)
}

// 一次取得が空の場合は chunk_retrieval を強制して一度だけ再試行する
func TestAskEmptyRetrievalRetriesOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{
		nil, // 一次取得
		someChunks(f.doc, "found on retry", 0.7), // フォールバック
	}

	result, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})
	require.NoError(t, err)

	assert.Equal(t, 2, f.searcher.calls)
	assert.Equal(t, classify.QueryTypeChunkRetrieval, result.QueryType)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "found on retry", result.Sources[0].ChunkContent)
}

// 再試行も空なら ErrEmptyRetrieval で質問全体が失敗し、何も永続化されない
func TestAskEmptyRetrievalAfterRetryFails(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})
	require.ErrorIs(t, err, ErrEmptyRetrieval)

	assert.Equal(t, 2, f.searcher.calls)
	assert.Empty(t, f.store.messages)
	assert.Empty(t, f.store.usage)
}

// LLM生成の失敗は GenerationError になり、部分的な書き込みは残らない
func TestAskGenerationFailureWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.queue = [][]*retrieval.RetrievedChunk{someChunks(f.doc, "text", 0.9)}
	f.llm.err = errors.New("provider down")

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Empty(t, f.store.messages)
	assert.Empty(t, f.store.usage)
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "   "})

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
}

func TestAskUnknownChat(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: uuid.New(), Question: "question"})
	assert.ErrorIs(t, err, ErrChatNotFound)
}

// チャット作成後にドキュメントが利用不能になった場合は黙って無視せず失敗させる
func TestAskFailsWhenDocumentNoLongerAvailable(t *testing.T) {
	f := newFixture(t, nil)
	f.doc.Status = document.StatusFailed

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})

	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, stateErr.Reason, "no longer available")
}

func TestAskFailsWhenDocumentMissing(t *testing.T) {
	f := newFixture(t, nil)
	f.chat.DocumentIDs = append(f.chat.DocumentIDs, uuid.New())

	_, err := f.service.Ask(context.Background(), AskParams{ChatID: f.chat.ID, Question: "question"})
	assert.ErrorIs(t, err, document.ErrNotFound)
}

// document_level の結果には要約が類似度1.0の出典として含まれる
func TestAskDocumentLevelSourcesIncludeSummaries(t *testing.T) {
	f := newFixture(t, nil)
	f.doc.Summary = mo.Some("A summary of the manual")

	result, err := f.service.Ask(context.Background(), AskParams{
		ChatID:   f.chat.ID,
		Question: "give me a summary of this document",
	})
	require.NoError(t, err)

	assert.Equal(t, classify.QueryTypeDocumentLevel, result.QueryType)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, 1.0, result.Sources[0].Similarity)
	assert.Equal(t, "[Document Summary] A summary of the manual", result.Sources[0].ChunkContent)
}

func TestCreateChatValidatesDocuments(t *testing.T) {
	f := newFixture(t, nil)

	// ドキュメントなし
	_, err := f.service.CreateChat(context.Background(), nil, mo.None[string]())
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	// pending のドキュメント
	pending := &document.Document{ID: uuid.New(), Name: "new.pdf", Status: document.StatusPending}
	f.service.docs.(*fakeDocs).docs[pending.ID] = pending

	_, err = f.service.CreateChat(context.Background(), []uuid.UUID{pending.ID}, mo.None[string]())
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, stateErr.Reason, "not ready")

	// completed のドキュメント
	c, err := f.service.CreateChat(context.Background(), []uuid.UUID{f.doc.ID}, mo.Some("my chat"))
	require.NoError(t, err)
	assert.Equal(t, "my chat", c.Title.OrElse(""))
}

// 履歴ありの質問ではビルダーに履歴が渡る（直近の往復を含む）
func TestAskWithHistoryUsesFollowUpPath(t *testing.T) {
	f := newFixture(t, nil)
	f.chat.Title = mo.Some("t")
	f.chat.Messages = []*Message{
		{ID: uuid.New(), ChatID: f.chat.ID, Role: llm.RoleUser, Content: "first question", CreatedAt: time.Now()},
		{ID: uuid.New(), ChatID: f.chat.ID, Role: llm.RoleAssistant, Content: "first answer", CreatedAt: time.Now()},
	}

	result, err := f.service.Ask(context.Background(), AskParams{
		ChatID:   f.chat.ID,
		Question: "tell me more",
	})
	require.NoError(t, err)

	// ルールベース分類で follow_up になり、会話履歴だけで回答する
	assert.Equal(t, classify.QueryTypeFollowUp, result.QueryType)
	assert.Equal(t, retrieval.StrategyConversationHistory, result.RetrievalStrategy)
	assert.Equal(t, 0, f.searcher.calls)
	assert.Empty(t, result.Sources)
}
