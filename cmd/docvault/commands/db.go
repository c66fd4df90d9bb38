package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/docvault/internal/infra/postgres"
)

// DBMigrateAction はデータベーススキーマを適用するコマンドのアクション
func DBMigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := postgres.Migrate(ctx, appCtx.Database.Pool); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	fmt.Println("スキーマを適用しました")
	return nil
}
