package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiKitchenCost/internal/config"
)

// migration is one SQL file on disk
type migration struct {
	Filename string
	Content  []byte
	Checksum string
}

// appliedMigration is a row of schema_migrations
type appliedMigration struct {
	Filename string `db:"filename"`
	Checksum string `db:"checksum"`
}

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました: ", err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました: ", err)
	}
	defer logger.Sync()

	logger.Info("zaiKitchenCost マイグレーション実行ツール")

	// マイグレーションディレクトリの確認
	migrationDir := "migrations"
	if len(os.Args) > 1 {
		migrationDir = os.Args[1]
	}
	migrations, err := loadMigrations(migrationDir)
	if err != nil {
		logger.Fatal("マイグレーションファイルの読み込みに失敗しました", zap.Error(err))
	}

	logger.Info("データベースに接続中",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション履歴テーブルの作成
	if err := createMigrationTable(ctx, db); err != nil {
		logger.Fatal("マイグレーション履歴テーブル作成に失敗しました", zap.Error(err))
	}

	// マイグレーション実行
	if err := runMigrations(ctx, db, migrations, logger); err != nil {
		logger.Fatal("マイグレーション実行に失敗しました", zap.Error(err))
	}

	logger.Info("すべてのマイグレーションが完了しました")
}

// loadMigrations reads *.sql files of dir in filename order
// マイグレーションファイルをファイル名順に読み込み
func loadMigrations(dir string) ([]migration, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("マイグレーションディレクトリが見つかりません: %s: %w", dir, err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}
	sort.Strings(files)

	migrations := make([]migration, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("ファイル読み込みエラー %s: %w", file, err)
		}
		migrations = append(migrations, migration{
			Filename: filepath.Base(file),
			Content:  content,
			Checksum: calculateChecksum(content),
		})
	}
	return migrations, nil
}

// createMigrationTable マイグレーション履歴テーブルを作成
func createMigrationTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) NOT NULL UNIQUE,
			executed_at TIMESTAMP NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}
	return nil
}

// runMigrations マイグレーションを実行（1ファイル1トランザクション）
func runMigrations(ctx context.Context, db *sqlx.DB, migrations []migration, logger *zap.Logger) error {
	var applied []appliedMigration
	if err := db.SelectContext(ctx, &applied, "SELECT filename, checksum FROM schema_migrations"); err != nil {
		return fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}

	for _, m := range pending(migrations, applied, logger) {
		logger.Info("実行中", zap.String("filename", m.Filename))

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("トランザクション開始エラー %s: %w", m.Filename, err)
		}

		if _, err := tx.ExecContext(ctx, string(m.Content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("マイグレーション実行エラー %s: %w", m.Filename, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
			m.Filename, m.Checksum,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", m.Filename, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("トランザクションコミットエラー %s: %w", m.Filename, err)
		}

		logger.Info("完了", zap.String("filename", m.Filename))
	}
	return nil
}

// pending returns migrations not yet applied; edited files that were already applied are logged and skipped
// 未実行のマイグレーションを返す
func pending(migrations []migration, applied []appliedMigration, logger *zap.Logger) []migration {
	checksums := make(map[string]string, len(applied))
	for _, a := range applied {
		checksums[a.Filename] = a.Checksum
	}

	var out []migration
	for _, m := range migrations {
		sum, done := checksums[m.Filename]
		if !done {
			out = append(out, m)
			continue
		}
		if sum != m.Checksum {
			logger.Warn("実行済みマイグレーションが変更されています",
				zap.String("filename", m.Filename),
				zap.String("applied_checksum", sum),
				zap.String("current_checksum", m.Checksum),
			)
			continue
		}
		logger.Debug("スキップ (実行済み)", zap.String("filename", m.Filename))
	}
	return out
}

// calculateChecksum ファイル内容のSHA-256チェックサムを計算
func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
