package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hubfetch/services/fetch"
	"hubfetch/services/fetch/internal/config"
)

const serviceName = "fetch-benchmarks"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		baseDir      string
		author       string
		family       string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Download benchmark model weights and configs from the hub",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_ = godotenv.Load()

			cfg, err := config.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if author == "" {
				author = cfg.Author
			}

			rt, err := fetch.NewRuntime(ctx, cfg, serviceName)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rt.Close(shutdownCtx); err != nil {
					rt.Logger.Error().Err(err).Msg("shutdown")
				}
			}()

			_, err = rt.Run(ctx, fetch.Benchmarks(rt.Hub, rt.Cache, author, family, baseDir), manifestPath)
			return err
		},
	}

	cmd.Flags().StringVar(&baseDir, "base-dir", fetch.DefaultBenchmarksDir, "Directory benchmark folders are created in")
	cmd.Flags().StringVar(&author, "author", "", "Publishing organization (default $HUBFETCH_AUTHOR)")
	cmd.Flags().StringVar(&family, "family", fetch.DefaultFamily, "Model family marker that names must contain")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Optional path for a YAML run manifest")
	return cmd
}
