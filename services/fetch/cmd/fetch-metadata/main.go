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

const serviceName = "fetch-metadata"

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
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Download dataset metadata YAML files from the hub",
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

			_, err = rt.Run(ctx, fetch.Metadata(rt.Hub, author, baseDir), manifestPath)
			return err
		},
	}

	cmd.Flags().StringVar(&baseDir, "base-dir", fetch.DefaultMetadataDir, "Directory dataset folders are created in")
	cmd.Flags().StringVar(&author, "author", "", "Publishing organization (default $HUBFETCH_AUTHOR)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Optional path for a YAML run manifest")
	return cmd
}
