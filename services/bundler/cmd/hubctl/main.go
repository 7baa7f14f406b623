package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"hubfetch/services/bundler"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hubctl",
		Short:         "Utility for packing fetched hub artifacts into portable bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newBundlesCommand())
	return cmd
}

func newBundlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "Bundle build and verify operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newBundlesBuildCommand())
	cmd.AddCommand(newBundlesVerifyCommand())
	return cmd
}

// signerFromEnv returns nil when no key is configured.
func signerFromEnv() (*bundler.Signer, error) {
	signer, err := bundler.NewSignerFromEnv()
	if errors.Is(err, bundler.ErrNoSigningKey) {
		return nil, nil
	}
	return signer, err
}

func newBundlesBuildCommand() *cobra.Command {
	var (
		artifactsDir string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create a bundle from a fetched artifacts directory",
		Long:  "Create a bundle from a fetched artifacts directory. The manifest is signed when AGE_SECRET_KEY is set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := signerFromEnv()
			if err != nil {
				return err
			}
			_, err = bundler.Build(cmd.Context(), bundler.BuildConfig{
				ArtifactsDir: artifactsDir,
				Output:       output,
				Signer:       signer,
				Stdout:       cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Fetched tree to include, e.g. data/model-data/benchmarks")
	cmd.Flags().StringVar(&output, "output", "", "Destination bundle file (tar.zst)")
	_ = cmd.MarkFlagRequired("artifacts-dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newBundlesVerifyCommand() *cobra.Command {
	var (
		bundleFile    string
		extractTo     string
		allowUnsigned bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a bundle and optionally extract its artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := signerFromEnv()
			if err != nil {
				return err
			}
			_, err = bundler.Verify(cmd.Context(), bundler.VerifyConfig{
				BundlePath:    bundleFile,
				Signer:        signer,
				AllowUnsigned: allowUnsigned,
				ExtractTo:     extractTo,
				Stdout:        cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	cmd.Flags().StringVar(&extractTo, "extract-to", "", "Directory receiving the verified artifacts")
	cmd.Flags().BoolVar(&allowUnsigned, "allow-unsigned", false, "Accept bundles whose signature cannot be checked")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
