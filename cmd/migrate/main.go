package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tropicaldog17/mangaguard/internal/config"
	"github.com/tropicaldog17/mangaguard/internal/db"
	"github.com/tropicaldog17/mangaguard/internal/logger"
)

// Migration represents a database migration
type Migration struct {
	ID       int
	Filename string
	Content  string
}

func main() {
	config.LoadDotEnv()

	app := cli.App{
		Name:  "migrate",
		Usage: "apply SQL migrations to the mangaguard postgres database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db-host", Value: "localhost", EnvVars: []string{"DB_HOST"}},
			&cli.StringFlag{Name: "db-port", Value: "5432", EnvVars: []string{"DB_PORT"}},
			&cli.StringFlag{Name: "db-user", Value: "mangaguard", EnvVars: []string{"DB_USER"}},
			&cli.StringFlag{Name: "db-password", Value: "mangaguard", EnvVars: []string{"DB_PASSWORD"}},
			&cli.StringFlag{Name: "db-name", Value: "mangaguard", EnvVars: []string{"DB_NAME"}},
			&cli.StringFlag{Name: "db-ssl-mode", Value: "disable", EnvVars: []string{"DB_SSL_MODE"}},
			&cli.StringFlag{Name: "dir", Value: "migrations", Usage: "directory holding NNN_name.sql files"},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "run every migration newer than the recorded version",
				Action: runUp,
			},
			{
				Name:   "status",
				Usage:  "print the recorded version and the pending migrations",
				Action: runStatus,
			},
		},
	}
	app.RunAndExitOnError()
}

func openDB(cctx *cli.Context) (*sql.DB, error) {
	cfg := db.Config{
		Host:     cctx.String("db-host"),
		Port:     cctx.String("db-port"),
		User:     cctx.String("db-user"),
		Password: cctx.String("db-password"),
		Name:     cctx.String("db-name"),
		SSLMode:  cctx.String("db-ssl-mode"),
	}
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := createMigrationsTable(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return conn, nil
}

func runUp(cctx *cli.Context) error {
	zl, err := logger.New(os.Getenv("LOG_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		return err
	}
	defer zl.Sync()

	conn, err := openDB(cctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	currentVersion, err := getCurrentVersion(conn)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	migrations, err := loadMigrations(cctx.String("dir"))
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	for _, m := range pending(migrations, currentVersion) {
		zl.Info("Running migration", zap.Int("id", m.ID), zap.String("file", m.Filename))
		if err := runMigration(conn, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.ID, err)
		}
	}
	zl.Info("All migrations completed successfully")
	return nil
}

func runStatus(cctx *cli.Context) error {
	conn, err := openDB(cctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	currentVersion, err := getCurrentVersion(conn)
	if err != nil {
		return err
	}
	migrations, err := loadMigrations(cctx.String("dir"))
	if err != nil {
		return err
	}
	fmt.Printf("current version: %d\n", currentVersion)
	for _, m := range pending(migrations, currentVersion) {
		fmt.Printf("pending: %s\n", m.Filename)
	}
	return nil
}

func createMigrationsTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			executed_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	return err
}

func getCurrentVersion(conn *sql.DB) (int, error) {
	var version int
	err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// loadMigrations reads NNN_name.sql files from dir ordered by their numeric prefix.
// Files without a numeric prefix are ignored; two files sharing an id are an error.
func loadMigrations(dir string) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(file.Name(), "_")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[id]; dup {
			return nil, fmt.Errorf("migrations %s and %s share id %d", other, file.Name(), id)
		}
		seen[id] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}
		migrations = append(migrations, Migration{ID: id, Filename: file.Name(), Content: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

func pending(migrations []Migration, current int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.ID > current {
			out = append(out, m)
		}
	}
	return out
}

func runMigration(conn *sql.DB, migration Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.Content); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, filename) VALUES ($1, $2)",
		migration.ID, migration.Filename,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
