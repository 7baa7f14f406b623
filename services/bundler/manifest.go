package bundler

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest is stored as manifest.yaml at the root of a bundle. It lists every fetched artifact with its size
// and digest, and names the resource directories the artifacts came from. Signature covers the YAML encoding of
// every other field.
type Manifest struct {
	Version          string             `yaml:"version"`
	CreatedAt        time.Time          `yaml:"created_at"`
	Signer           string             `yaml:"signer,omitempty"`
	SigningPublicKey string             `yaml:"signing_public_key,omitempty"`
	Signature        string             `yaml:"signature,omitempty"`
	Resources        []string           `yaml:"resources,omitempty"`
	Artifacts        []ManifestArtifact `yaml:"artifacts"`
}

// SigningBytes is the payload Signature is computed over.
func (m Manifest) SigningBytes() ([]byte, error) {
	unsigned := m
	unsigned.Signature = ""
	return yaml.Marshal(unsigned)
}

// ManifestArtifact is one fetched file, stored under artifacts/<Path> in the archive.
// Kind is derived from the extension: weights, config, metadata or file.
type ManifestArtifact struct {
	Path   string `yaml:"path"`
	Kind   string `yaml:"kind"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}
