package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// A migration patches an *existing* older database toward the current
// schema. Fresh databases are created at the end state by initSchema, so a
// migration whose target table is missing is recorded as applied without
// running its DDL.
type migration struct {
	name  string
	table string
	stmts []string
}

// Ordered, forward-only. Names are recorded in the migrations ledger and
// never re-run.
var migrations = []migration{
	{
		name:  "2024_10_01_add_feed_error_message",
		table: "feeds",
		stmts: []string{`ALTER TABLE feeds ADD COLUMN error_message TEXT NOT NULL DEFAULT ''`},
	},
	{
		name:  "2024_11_14_add_feed_update_interval",
		table: "feeds",
		stmts: []string{`ALTER TABLE feeds ADD COLUMN update_interval INTEGER NOT NULL DEFAULT 3600`},
	},
	{
		name:  "2025_01_20_add_article_thumbnail_url",
		table: "articles",
		stmts: []string{`ALTER TABLE articles ADD COLUMN thumbnail_url TEXT NOT NULL DEFAULT ''`},
	},
	{
		name:  "2025_03_08_add_category_expanded",
		table: "categories",
		stmts: []string{`ALTER TABLE categories ADD COLUMN expanded INTEGER NOT NULL DEFAULT 0`},
	},
	{
		name:  "2025_05_30_add_feed_extract_content",
		table: "feeds",
		stmts: []string{`ALTER TABLE feeds ADD COLUMN extract_content INTEGER NOT NULL DEFAULT 0`},
	},
	{
		name:  "2025_07_11_index_articles_read_favorite",
		table: "articles",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_articles_read ON articles (read)`,
			`CREATE INDEX IF NOT EXISTS idx_articles_favorite ON articles (favorite)`,
		},
	},
}

// runMigrations applies every migration not yet present in the ledger.
// Re-running the whole sequence is safe: applied names are skipped, and a
// "duplicate column name" from a racing or pre-created column counts as
// success.
func runMigrations(ctx context.Context, conn *Conn) error {
	for _, m := range migrations {
		applied, err := migrationApplied(ctx, conn, m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		exists, err := tableExists(ctx, conn, m.table)
		if err != nil {
			return err
		}
		if exists {
			for _, stmt := range m.stmts {
				if _, err := conn.ExecContext(ctx, stmt); err != nil {
					if isDuplicateColumn(err) {
						slog.Debug("Migration column already present", "migration", m.name)
						continue
					}
					return fmt.Errorf("migration %s: %w", m.name, err)
				}
			}
		}

		_, err = conn.ExecContext(ctx,
			`INSERT INTO migrations (name, applied_at) VALUES (?, ?)`,
			m.name, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.name, err)
		}
		slog.Debug("Migration applied", "migration", m.name)
	}
	return nil
}

func migrationApplied(ctx context.Context, conn *Conn, name string) (bool, error) {
	var one int
	err := conn.QueryRowContext(ctx,
		`SELECT 1 FROM migrations WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check migration ledger: %w", err)
	}
	return true, nil
}

func tableExists(ctx context.Context, conn *Conn, name string) (bool, error) {
	var found string
	err := conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return true, nil
}

func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
