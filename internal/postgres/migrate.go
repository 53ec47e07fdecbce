package postgres

import (
	"context"
	"embed"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending migrations in file name order. Each migration and
// its schema_migrations row commit in one transaction.
func Migrate(ctx context.Context, db Beginner) (int, error) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return 0, errors.Wrap(err, "read migrations")
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		// schema_migrations is created by 000.
		var exists bool
		err := db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
		if err != nil {
			if version != "000" {
				return applied, errors.Wrapf(err, "schema_migrations missing before %s", filename)
			}
		} else if exists {
			slog.Debug("skipping migration", "migration", filename, "version", version)
			continue
		}

		sqlBytes, err := migrations.ReadFile(path.Join("migrations", filename))
		if err != nil {
			return applied, errors.Wrapf(err, "read %s", filename)
		}

		slog.Info("applying migration", "migration", filename, "version", version)

		err = pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
				return errors.Wrapf(err, "execute %s", filename)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING", version); err != nil {
				return errors.Wrapf(err, "record %s", filename)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}
		applied++
	}

	slog.Info("migrations complete", "total", len(files), "applied", applied)
	return applied, nil
}
