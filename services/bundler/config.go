package bundler

import (
	"io"
	"time"
)

// BuildConfig configures bundle creation.
type BuildConfig struct {
	// ArtifactsDir is a fetched tree, e.g. data/model-data/benchmarks.
	ArtifactsDir string
	Output       string
	// Signer is optional. Without one the bundle is written unsigned.
	Signer *Signer
	Now    func() time.Time
	Stdout io.Writer
}

// VerifyConfig configures bundle verification and extraction.
type VerifyConfig struct {
	BundlePath string
	Signer     *Signer
	// AllowUnsigned accepts bundles without a signature, or skips the signature check when no Signer is configured.
	AllowUnsigned bool
	// ExtractTo receives the verified artifacts when non-empty.
	ExtractTo string
	Stdout    io.Writer
}
