package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/docvault/internal/core/document"
	"github.com/jinford/docvault/internal/core/ingestion"
)

// DocumentIngestAction はテキストファイルを取り込むコマンドのアクション
func DocumentIngestAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	filePath := cmd.String("file")
	name := cmd.String("name")

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	if name == "" {
		name = filepath.Base(filePath)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// 改ページ文字（form feed）区切りをページ境界として扱う
	pages := strings.Split(string(data), "\f")

	doc, err := appCtx.Ingestion.Ingest(ctx, ingestion.IngestParams{
		Name:  name,
		Pages: pages,
	})
	if err != nil {
		return fmt.Errorf("ドキュメントの取り込みに失敗: %w", err)
	}

	fmt.Printf("ドキュメントを取り込みました: %s (%s)\n", doc.Name, doc.ID)
	fmt.Printf("  チャンク数: %d / 語数: %d\n", doc.ChunkCount, doc.WordCount)
	return nil
}

// DocumentListAction はドキュメント一覧を表示するコマンドのアクション
func DocumentListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	docs, err := appCtx.Documents.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("ドキュメントの取得に失敗: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("ドキュメントはありません")
		return nil
	}

	renderDocumentsTable(docs)
	return nil
}

// DocumentShowAction はドキュメント詳細を表示するコマンドのアクション
func DocumentShowAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	doc, err := appCtx.Documents.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("ドキュメントの取得に失敗: %w", err)
	}

	renderDocumentDetail(doc)
	return nil
}

// DocumentDeleteAction はドキュメントを削除するコマンドのアクション
func DocumentDeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Documents.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("ドキュメントの削除に失敗: %w", err)
	}

	fmt.Printf("ドキュメントを削除しました: %s\n", id)
	return nil
}

// DocumentSummarizeAction はドキュメント要約を再生成するコマンドのアクション
func DocumentSummarizeAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	id, err := uuid.Parse(cmd.String("id"))
	if err != nil {
		return fmt.Errorf("不正なドキュメントID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	doc, err := appCtx.Ingestion.RegenerateSummary(ctx, id)
	if err != nil {
		return fmt.Errorf("要約の再生成に失敗: %w", err)
	}

	fmt.Printf("要約を再生成しました: %s\n\n%s\n", doc.Name, doc.Summary.OrElse(""))
	return nil
}

// renderDocumentsTable はドキュメント一覧をテーブル表示する
func renderDocumentsTable(docs []*document.Document) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Status", "Chunks", "Words", "Created At")

	for _, doc := range docs {
		table.Append(
			doc.ID.String(),
			truncateString(doc.Name, 40),
			string(doc.Status),
			fmt.Sprintf("%d", doc.ChunkCount),
			fmt.Sprintf("%d", doc.WordCount),
			doc.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}

// renderDocumentDetail はドキュメントの詳細を表示する
func renderDocumentDetail(doc *document.Document) {
	fmt.Printf("\n=== ドキュメント詳細 ===\n\n")
	fmt.Printf("ID:         %s\n", doc.ID)
	fmt.Printf("名前:       %s\n", doc.Name)
	fmt.Printf("ステータス: %s\n", doc.Status)
	if msg, ok := doc.StatusMessage.Get(); ok {
		fmt.Printf("状態詳細:   %s\n", msg)
	}
	if pages, ok := doc.PageCount.Get(); ok {
		fmt.Printf("ページ数:   %d\n", pages)
	}
	fmt.Printf("語数:       %d\n", doc.WordCount)
	fmt.Printf("チャンク数: %d\n", doc.ChunkCount)
	fmt.Printf("作成日時:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if processedAt, ok := doc.ProcessedAt.Get(); ok {
		fmt.Printf("処理日時:   %s\n", processedAt.Format("2006-01-02 15:04:05"))
	}
	if summary, ok := doc.Summary.Get(); ok {
		fmt.Printf("\n要約:\n%s\n", summary)
	}
}
