package main

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/samuvale95/swift-study-box-be/internal/config"
	migrations "github.com/samuvale95/swift-study-box-be/migrations/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Apply the embedded SQL migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = strings.ToLower(args[0])
			}
			if action != "up" && action != "down" {
				return fmt.Errorf("unknown action %q, want up or down", action)
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("storage.dsn is not configured")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()

			return runMigrations(ctx, pool, action)
		},
	}
	return cmd
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, action string) error {
	files, err := listSQL(migrations.FS, "_"+action+".sql")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("nothing to do")
		return nil
	}

	sort.Strings(files)
	if action == "down" {
		// undo the most recent first
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	for _, f := range files {
		sql, err := fs.ReadFile(migrations.FS, f)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		fmt.Printf("applied %s\n", f)
	}
	return nil
}

func listSQL(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
