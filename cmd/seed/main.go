// Command seed runs the data maintenance jobs against the configured database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storyforge/bootstrap"
	"storyforge/config"
	"storyforge/db"
	"storyforge/logger"
	"storyforge/repository"
)

var (
	allowFallback bool
	timeoutFlag   time.Duration
	rootCmd       = &cobra.Command{
		Use:          "seed",
		Short:        "Maintenance jobs for the storyforge database",
		SilenceUsage: true,
	}
)

func main() {
	rootCmd.PersistentFlags().BoolVar(&allowFallback, "allow-fallback", false, "Run against the in-memory store when the database is unreachable")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 2*time.Minute, "Overall time limit")

	systemCmd := &cobra.Command{
		Use:   "system",
		Short: "Create the shared system resources for kinds that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBootstrapper(cmd.Context(), func(ctx context.Context, b *bootstrap.Bootstrapper) error {
				return runSystem(ctx, b, os.Stdout)
			})
		},
	}
	rootCmd.AddCommand(systemCmd)

	var userID string
	var collections []string
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Assign documents without an owner to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			return withBootstrapper(cmd.Context(), func(ctx context.Context, b *bootstrap.Bootstrapper) error {
				return runMigrate(ctx, b, collections, userID, os.Stdout)
			})
		},
	}
	migrateCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID that receives the documents (required)")
	migrateCmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "Collection to migrate, repeatable (defaults to every configured collection)")
	_ = migrateCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withBootstrapper connects using the process configuration and runs fn.
func withBootstrapper(parent context.Context, fn func(context.Context, *bootstrap.Bootstrapper) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeoutFlag)
	defer cancel()

	log := logger.NewWithWriter("storyforge-seed", os.Stderr)
	cfg, _, err := config.Load()
	if err != nil {
		return err
	}

	manager := db.NewManager(db.Options{
		URI:            cfg.MongoDBURI,
		Database:       cfg.MongoDBDatabase,
		ConnectTimeout: cfg.DBConnectTimeout,
		Indexes:        repository.IndexSpecs(cfg.Collections()),
	}, log)
	if err := manager.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = manager.Close(context.Background()) }()

	if err := requireDatabase(manager.Mode(), allowFallback); err != nil {
		return err
	}
	return fn(ctx, bootstrap.New(manager, cfg.Collections(), log))
}

// requireDatabase refuses to write to the fallback store, whose contents vanish on exit.
func requireDatabase(mode db.Mode, allowFallback bool) error {
	if mode == db.ModeFallback && !allowFallback {
		return fmt.Errorf("database unreachable, refusing to run against the in-memory store (use --allow-fallback to override)")
	}
	return nil
}

func runSystem(ctx context.Context, b *bootstrap.Bootstrapper, out io.Writer) error {
	report, err := b.CreateSystemResources(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, report)
}

func runMigrate(ctx context.Context, b *bootstrap.Bootstrapper, collections []string, userID string, out io.Writer) error {
	if len(collections) == 0 {
		collections = b.CollectionNames()
	}
	results := make(map[string]bootstrap.MigrationResult, len(collections))
	for _, name := range collections {
		res, err := b.MigrateResourcesToUser(ctx, name, userID)
		if err != nil {
			return err
		}
		results[name] = res
	}
	return printJSON(out, results)
}

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
