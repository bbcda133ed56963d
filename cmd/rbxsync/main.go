package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rbxkit/rbxsync/internal/api"
	"github.com/rbxkit/rbxsync/internal/catalog"
	"github.com/rbxkit/rbxsync/internal/config"
	"github.com/rbxkit/rbxsync/internal/diff"
	"github.com/rbxkit/rbxsync/internal/httpclient"
	"github.com/rbxkit/rbxsync/internal/sync"
	"github.com/rbxkit/rbxsync/internal/term"
	"github.com/rbxkit/rbxsync/internal/validate"
)

// Exit codes for CI use.
const (
	exitFailure = 1
	exitChanges = 2 // diff mode: changes detected
)

var (
	cfgFile   string
	autoYes   bool
	overwrite bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "rbxsync",
		Short: "Reconcile a local product catalog with the Roblox platform",
		Long:  "Downloads game passes and developer products into a versioned catalog file, diffs local edits against remote state, and pushes confirmed changes back.",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rbxsync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&autoYes, "yes", "y", false, "automatically answer yes to all prompts")
	rootCmd.PersistentFlags().BoolVarP(&overwrite, "overwrite", "o", false, "let remote values win merges and auto-confirm all diffs")

	rootCmd.AddCommand(
		initCmd(),
		downloadCmd(),
		syncCmd(),
		diffCmd(),
		validateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitFailure)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if _, err := os.Stat(cfg.CatalogPath); err == nil {
				return fmt.Errorf("%s already exists, aborting initialization", cfg.CatalogPath)
			}

			prefix := sync.DefaultDiscountPrefix
			luau := "products.luau"
			cat := &catalog.Catalog{
				Metadata: catalog.Metadata{
					UniverseID:     1234,
					DiscountPrefix: &prefix,
					LuauFile:       &luau,
				},
				Gamepasses: map[string]*catalog.Product{},
				Products:   map[string]*catalog.Product{},
			}

			if err := cat.Save(cfg.CatalogPath); err != nil {
				return fmt.Errorf("initializing catalog: %w", err)
			}

			slog.Info("catalog initialized", "path", cfg.CatalogPath)
			return nil
		},
	}
}

func downloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download all remote products into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			d := sync.NewDownloader(newAPIClient(cfg), cfg.CatalogPath, overwrite)
			if err := d.Run(cmd.Context()); err != nil {
				slog.Error("download failed", "error", err)
				return err
			}

			return maybeCommit(cfg, "rbxsync: download remote products")
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push local catalog changes to the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var confirmer sync.Confirmer = term.New()
			if autoYes {
				confirmer = sync.AutoConfirmer{}
			}

			u := sync.NewUploader(newAPIClient(cfg), cfg.CatalogPath, overwrite, confirmer)
			if err := u.Run(cmd.Context()); err != nil {
				return err
			}

			return maybeCommit(cfg, "rbxsync: sync local changes to remote")
		},
	}
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show pending changes without pushing (exit code 2 when any)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			remotes, err := newAPIClient(cfg).FetchAll(cmd.Context(), cat.Metadata.UniverseID)
			if err != nil {
				return err
			}

			diffs := sync.ComputeDiffs(cat, remotes)
			fmt.Print(diff.RenderSummary(diffs))

			if len(diffs) > 0 {
				os.Exit(exitChanges)
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the catalog file (CI check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cat, err := catalog.Load(cfg.CatalogPath)
			if err != nil {
				return err
			}

			result := validate.Catalog(cat)
			fmt.Println(validate.FormatResult(result))

			if result.HasErrors() {
				os.Exit(exitFailure)
			}
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func newAPIClient(cfg *config.Config) *api.Client {
	hc := httpclient.New(
		httpclient.WithCredentials(httpclient.NewCredentials(cfg.API.Key)),
		httpclient.WithRateLimit(cfg.RateLimit),
		httpclient.WithMaxRetries(cfg.MaxRetries),
	)
	return api.New(hc, cfg.API.BaseURL, cfg.PageSize)
}

// maybeCommit records the catalog and export files in git when enabled.
func maybeCommit(cfg *config.Config, message string) error {
	if !cfg.Git.AutoCommit {
		return nil
	}

	files := []string{cfg.CatalogPath}
	if cat, err := catalog.Load(cfg.CatalogPath); err == nil && cat.Metadata.LuauFile != nil {
		files = append(files, *cat.Metadata.LuauFile)
	}

	if err := sync.CommitCatalog(files, message); err != nil {
		slog.Error("auto-commit failed", "error", err)
		return err
	}
	return nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
