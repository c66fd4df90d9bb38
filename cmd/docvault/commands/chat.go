package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/docvault/internal/core/chat"
)

// top-k の許容範囲（CLI境界での検証用）
const (
	minTopK = 1
	maxTopK = 20
)

// ChatCreateAction はチャットを作成するコマンドのアクション
func ChatCreateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	title := cmd.String("title")

	documentIDs, err := parseDocumentIDs(cmd.StringSlice("document"))
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	titleOpt := mo.None[string]()
	if title != "" {
		titleOpt = mo.Some(title)
	}

	c, err := appCtx.Chat.CreateChat(ctx, documentIDs, titleOpt)
	if err != nil {
		return fmt.Errorf("チャットの作成に失敗: %w", err)
	}

	fmt.Printf("チャットを作成しました: %s\n", c.ID)
	return nil
}

// ChatAskAction はチャットで質問するコマンドのアクション
func ChatAskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	question := cmd.String("question")

	chatID, err := uuid.Parse(cmd.String("chat-id"))
	if err != nil {
		return fmt.Errorf("不正なチャットID: %w", err)
	}

	topK := cmd.Int("top-k")
	if err := validateTopK(topK); err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Chat.Ask(ctx, chat.AskParams{
		ChatID:          chatID,
		Question:        question,
		TopK:            topK,
		UseSmartRouting: !cmd.Bool("no-smart-routing"),
	})
	if err != nil {
		return fmt.Errorf("質問の処理に失敗: %w", err)
	}

	fmt.Printf("\n%s\n", result.Answer)

	if len(result.Sources) > 0 {
		fmt.Printf("\n--- 出典 (%s / %s) ---\n", result.QueryType, result.RetrievalStrategy)
		for i, source := range result.Sources {
			page := ""
			if p, ok := source.PageNumber.Get(); ok {
				page = fmt.Sprintf(" p.%d", p)
			}
			fmt.Printf("[%d] %s%s (類似度 %.4f)\n", i+1, source.DocumentName, page, source.Similarity)
		}
	}
	return nil
}

// ChatListAction はチャット一覧を表示するコマンドのアクション
func ChatListAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	chats, err := appCtx.Chat.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("チャットの取得に失敗: %w", err)
	}

	if len(chats) == 0 {
		fmt.Println("チャットはありません")
		return nil
	}

	renderChatsTable(chats)
	return nil
}

// ChatShowAction はチャットの会話履歴を表示するコマンドのアクション
func ChatShowAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	chatID, err := uuid.Parse(cmd.String("chat-id"))
	if err != nil {
		return fmt.Errorf("不正なチャットID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c, err := appCtx.Chat.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("チャットの取得に失敗: %w", err)
	}

	renderChatDetail(c)
	return nil
}

// ChatDeleteAction はチャットを削除するコマンドのアクション
func ChatDeleteAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	chatID, err := uuid.Parse(cmd.String("chat-id"))
	if err != nil {
		return fmt.Errorf("不正なチャットID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Chat.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("チャットの削除に失敗: %w", err)
	}

	fmt.Printf("チャットを削除しました: %s\n", chatID)
	return nil
}

// validateTopK はチャンク検索件数が許容範囲内であることを検証する
func validateTopK(n int) error {
	if n < minTopK || n > maxTopK {
		return fmt.Errorf("top-k は %d〜%d の範囲で指定してください（指定値: %d）", minTopK, maxTopK, n)
	}
	return nil
}

func parseDocumentIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("不正なドキュメントID %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// renderChatsTable はチャット一覧をテーブル表示する
func renderChatsTable(chats []*chat.Chat) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Title", "Documents", "Updated At")

	for _, c := range chats {
		table.Append(
			c.ID.String(),
			truncateString(c.Title.OrElse("(無題)"), 50),
			fmt.Sprintf("%d", len(c.DocumentIDs)),
			c.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}

// renderChatDetail はチャットの会話履歴を表示する
func renderChatDetail(c *chat.Chat) {
	fmt.Printf("\n=== チャット: %s ===\n", c.Title.OrElse("(無題)"))
	fmt.Printf("ID: %s\n", c.ID)

	fmt.Printf("\nドキュメント:\n")
	for _, doc := range c.Documents {
		fmt.Printf("  - %s (%s)\n", doc.Name, doc.Status)
	}

	if len(c.Messages) == 0 {
		fmt.Println("\nメッセージはありません")
		return
	}

	fmt.Println()
	for _, msg := range c.Messages {
		fmt.Printf("[%s] %s\n%s\n\n", msg.CreatedAt.Format("2006-01-02 15:04"), msg.Role, msg.Content)
	}
}
