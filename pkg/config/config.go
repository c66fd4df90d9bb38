package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings + LLM）
	OpenAI OpenAIConfig

	// チャンク分割設定
	Chunking ChunkingConfig

	// 検索パイプライン設定
	Retrieval RetrievalConfig

	// ログ出力設定
	Logger LoggerConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定（Embeddings + LLM）
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
}

// ChunkingConfig はドキュメント取り込み時のチャンク分割設定
type ChunkingConfig struct {
	ChunkSize    int // 1チャンクの目安文字数
	ChunkOverlap int // チャンク間のオーバーラップ文字数
}

// RetrievalConfig は検索パイプラインの会話履歴ウィンドウ設定。
// 値は元実装の固定値をそのまま既定値として引き継いでいる。
// メッセージ長に応じてスケールさせるべきかは未解決の課題。
type RetrievalConfig struct {
	ClassifyHistoryWindow       int // 分類プロンプトに含める履歴件数
	RouterConversationWindow    int // follow_up/mixed ルーティングで取得する履歴件数
	FollowUpHistoryWindow       int // follow_up コンテキストに含める履歴件数
	ChunkRetrievalHistoryWindow int // chunk_retrieval コンテキストに含める履歴件数
	MixedHistoryWindow          int // mixed コンテキストに含める履歴件数
}

// LoggerConfig はログ出力設定
type LoggerConfig struct {
	Level  string // "debug" / "info" / "warn" / "error"
	Format string // "json" or "text"
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docvault"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docvault"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		Retrieval: RetrievalConfig{
			ClassifyHistoryWindow:       getEnvAsInt("CLASSIFY_HISTORY_WINDOW", 10),
			RouterConversationWindow:    getEnvAsInt("ROUTER_CONVERSATION_WINDOW", 6),
			FollowUpHistoryWindow:       getEnvAsInt("FOLLOW_UP_HISTORY_WINDOW", 10),
			ChunkRetrievalHistoryWindow: getEnvAsInt("CHUNK_RETRIEVAL_HISTORY_WINDOW", 4),
			MixedHistoryWindow:          getEnvAsInt("MIXED_HISTORY_WINDOW", 6),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
