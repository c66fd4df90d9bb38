package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docvault/cmd/docvault/commands"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "docvault",
		Usage: "ドキュメント質問応答（RAG）システム",
		Commands: []*cli.Command{
			{
				Name:  "db",
				Usage: "データベース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "スキーマを適用",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.DBMigrateAction,
					},
				},
			},
			{
				Name:  "document",
				Usage: "ドキュメント管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "ingest",
						Usage: "テキストファイルを取り込み",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "file",
								Usage:    "取り込むテキストファイルパス（改ページ文字でページ区切り）",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "name",
								Usage: "ドキュメント名（省略時はファイル名）",
							},
						},
						Action: commands.DocumentIngestAction,
					},
					{
						Name:   "list",
						Usage:  "ドキュメント一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.DocumentListAction,
					},
					{
						Name:  "show",
						Usage: "ドキュメント詳細を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: commands.DocumentShowAction,
					},
					{
						Name:  "delete",
						Usage: "ドキュメントを削除",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: commands.DocumentDeleteAction,
					},
					{
						Name:  "summarize",
						Usage: "ドキュメント要約を再生成",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ドキュメントID",
								Required: true,
							},
						},
						Action: commands.DocumentSummarizeAction,
					},
				},
			},
			{
				Name:  "chat",
				Usage: "チャット管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "チャットを作成",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringSliceFlag{
								Name:     "document",
								Usage:    "対象ドキュメントID（複数指定可）",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "title",
								Usage: "チャットタイトル（省略時は最初の質問から自動生成）",
							},
						},
						Action: commands.ChatCreateAction,
					},
					{
						Name:  "ask",
						Usage: "チャットで質問",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "chat-id",
								Usage:    "チャットID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "question",
								Usage:    "質問文",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "top-k",
								Usage: "チャンク検索件数（1〜20）",
								Value: 5,
							},
							&cli.BoolFlag{
								Name:  "no-smart-routing",
								Usage: "LLM分類を使わずルールベース分類で処理",
							},
						},
						Action: commands.ChatAskAction,
					},
					{
						Name:   "list",
						Usage:  "チャット一覧を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: commands.ChatListAction,
					},
					{
						Name:  "show",
						Usage: "チャットの会話履歴を表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "chat-id",
								Usage:    "チャットID",
								Required: true,
							},
						},
						Action: commands.ChatShowAction,
					},
					{
						Name:  "delete",
						Usage: "チャットを削除",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "chat-id",
								Usage:    "チャットID",
								Required: true,
							},
						},
						Action: commands.ChatDeleteAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
