package bundler

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

const (
	manifestFileName   = "manifest.yaml"
	artifactsTarPrefix = "artifacts"
)

// Build assembles a bundle from the provided directory and writes the tar.zst archive to Output.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.ArtifactsDir == "" {
		return nil, errors.New("artifacts directory is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(cfg.ArtifactsDir)
	if err != nil {
		return nil, fmt.Errorf("stat artifacts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("artifacts dir %q is not a directory", cfg.ArtifactsDir)
	}

	output, err := filepath.Abs(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	entries, err := collectArtifacts(ctx, cfg.ArtifactsDir, output)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("no artifacts found to bundle")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	manifest := &Manifest{
		Version:   manifestVersion,
		CreatedAt: cfg.Now().UTC().Truncate(time.Second),
		Resources: resourceDirs(entries),
		Artifacts: entries,
	}

	if cfg.Signer != nil {
		manifest.Signer = cfg.Signer.Recipient()
		manifest.SigningPublicKey = cfg.Signer.PublicKeyBase64()

		payload, err := manifest.SigningBytes()
		if err != nil {
			return nil, fmt.Errorf("marshal manifest for signing: %w", err)
		}
		sig, err := cfg.Signer.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("sign manifest: %w", err)
		}
		manifest.Signature = sig
	}

	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if err := writeBundle(output, manifestBytes, cfg.ArtifactsDir, entries); err != nil {
		return nil, err
	}

	state := "signed"
	if manifest.Signature == "" {
		state = "unsigned"
	}
	fmt.Fprintf(cfg.Stdout, "wrote %s bundle %s (%d artifacts)\n", state, cfg.Output, len(entries))
	return manifest, nil
}

// collectArtifacts hashes every regular file under root except skip, the bundle being written.
func collectArtifacts(ctx context.Context, root, skip string) ([]ManifestArtifact, error) {
	var artifacts []ManifestArtifact
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && abs == skip {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		size, sha, err := hashFile(path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, ManifestArtifact{
			Path:   rel,
			Kind:   inferKind(rel),
			Size:   size,
			SHA256: sha,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func hashFile(path string) (int64, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open %q: %w", path, err)
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return 0, "", fmt.Errorf("hash %q: %w", path, err)
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}

// resourceDirs lists the distinct top-level directories, one per fetched resource.
func resourceDirs(entries []ManifestArtifact) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, e := range entries {
		dir, _, ok := strings.Cut(e.Path, "/")
		if !ok || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func writeBundle(output string, manifest []byte, artifactsDir string, entries []ManifestArtifact) error {
	dir := filepath.Dir(output)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer file.Close()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	if err := writeEntries(tw, manifest, artifactsDir, entries); err != nil {
		tw.Close()
		encoder.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return file.Close()
}

func writeEntries(tw *tar.Writer, manifest []byte, artifactsDir string, entries []ManifestArtifact) error {
	manifestHeader := &tar.Header{
		Name:     manifestFileName,
		Mode:     0o644,
		Size:     int64(len(manifest)),
		ModTime:  time.Now().UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(manifestHeader); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("write manifest body: %w", err)
	}

	for _, entry := range entries {
		fullPath := filepath.Join(artifactsDir, filepath.FromSlash(entry.Path))
		file, err := os.Open(fullPath)
		if err != nil {
			return fmt.Errorf("open %q: %w", entry.Path, err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return fmt.Errorf("stat %q: %w", entry.Path, err)
		}
		if info.Size() != entry.Size {
			file.Close()
			return fmt.Errorf("%q changed while bundling: hashed %d bytes, now %d", entry.Path, entry.Size, info.Size())
		}

		header := &tar.Header{
			Name:     path.Join(artifactsTarPrefix, entry.Path),
			Mode:     int64(info.Mode().Perm()),
			Size:     entry.Size,
			ModTime:  info.ModTime(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(header); err != nil {
			file.Close()
			return fmt.Errorf("write header for %q: %w", entry.Path, err)
		}
		if _, err := io.CopyN(tw, file, entry.Size); err != nil {
			file.Close()
			return fmt.Errorf("copy %q: %w", entry.Path, err)
		}
		file.Close()
	}
	return nil
}

func inferKind(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".safetensors"),
		strings.HasSuffix(lower, ".bin"),
		strings.HasSuffix(lower, ".pt"),
		strings.HasSuffix(lower, ".pth"),
		strings.HasSuffix(lower, ".ckpt"),
		strings.HasSuffix(lower, ".h5"):
		return "weights"
	case strings.HasSuffix(lower, ".json"):
		return "config"
	case strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml"):
		return "metadata"
	default:
		return "file"
	}
}

// Verify checks a bundle's manifest, signature and every artifact, then optionally extracts the artifacts.
func Verify(ctx context.Context, cfg VerifyConfig) (*Manifest, error) {
	if cfg.BundlePath == "" {
		return nil, errors.New("bundle file is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "hubfetch-bundle-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	manifestBytes, files, err := unpack(ctx, cfg.BundlePath, tempDir)
	if err != nil {
		return nil, err
	}
	if len(manifestBytes) == 0 {
		return nil, errors.New("bundle missing manifest.yaml")
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}

	if err := checkSignature(cfg, manifest); err != nil {
		return nil, err
	}

	for _, art := range manifest.Artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		relative := path.Clean(art.Path)
		if !filepath.IsLocal(filepath.FromSlash(relative)) {
			return nil, fmt.Errorf("invalid artifact path %q", art.Path)
		}
		tarPath := path.Join(artifactsTarPrefix, relative)
		tempPath, ok := files[tarPath]
		if !ok {
			return nil, fmt.Errorf("artifact %q missing from archive", relative)
		}
		if err := validateArtifact(tempPath, art); err != nil {
			return nil, err
		}
		delete(files, tarPath)
	}
	for name := range files {
		return nil, fmt.Errorf("archive entry %q is not listed in the manifest", name)
	}
	fmt.Fprintf(cfg.Stdout, "verified %d artifacts\n", len(manifest.Artifacts))

	if cfg.ExtractTo != "" {
		for _, art := range manifest.Artifacts {
			src := filepath.Join(tempDir, filepath.FromSlash(path.Join(artifactsTarPrefix, path.Clean(art.Path))))
			dst := filepath.Join(cfg.ExtractTo, filepath.FromSlash(path.Clean(art.Path)))
			if err := copyFile(src, dst); err != nil {
				return nil, err
			}
		}
		fmt.Fprintf(cfg.Stdout, "extracted %d artifacts to %s\n", len(manifest.Artifacts), cfg.ExtractTo)
	}

	return &manifest, nil
}

func checkSignature(cfg VerifyConfig, manifest Manifest) error {
	if manifest.Signature == "" {
		if !cfg.AllowUnsigned {
			return errors.New("manifest missing signature")
		}
		fmt.Fprintln(cfg.Stdout, "bundle is unsigned")
		return nil
	}
	if cfg.Signer == nil {
		if !cfg.AllowUnsigned {
			return errors.New("signer is required to verify a signed bundle")
		}
		fmt.Fprintln(cfg.Stdout, "signature not checked: no signer configured")
		return nil
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := cfg.Signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return fmt.Errorf("verify manifest signature: %w", err)
	}
	fmt.Fprintf(cfg.Stdout, "verified manifest signed at %s\n", manifest.CreatedAt.Format(time.RFC3339))
	return nil
}

// unpack extracts every regular entry of the bundle into dir and returns the manifest bytes and a map from
// archive path to extracted file.
func unpack(ctx context.Context, bundlePath, dir string) ([]byte, map[string]string, error) {
	bundleFile, err := os.Open(bundlePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open bundle: %w", err)
	}
	defer bundleFile.Close()

	decoder, err := zstd.NewReader(bundleFile)
	if err != nil {
		return nil, nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	tr := tar.NewReader(decoder)
	var (
		manifestBytes []byte
		files         = map[string]string{}
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(header.Name)
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return nil, nil, fmt.Errorf("invalid entry path %q", header.Name)
		}

		if name == manifestFileName {
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, nil, fmt.Errorf("read manifest: %w", err)
			}
			manifestBytes = data
			continue
		}

		targetPath := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("mkdir %q: %w", filepath.Dir(targetPath), err)
		}
		file, err := os.Create(targetPath)
		if err != nil {
			return nil, nil, fmt.Errorf("create temp file for %q: %w", name, err)
		}
		if _, err := io.Copy(file, tr); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("write temp file for %q: %w", name, err)
		}
		file.Close()

		files[name] = targetPath
	}
	return manifestBytes, files, nil
}

func validateArtifact(path string, art ManifestArtifact) error {
	size, computed, err := hashFile(path)
	if err != nil {
		return err
	}
	if size != art.Size {
		return fmt.Errorf("size mismatch for %q: expected %d got %d", art.Path, art.Size, size)
	}
	if !strings.EqualFold(computed, art.SHA256) {
		return fmt.Errorf("sha256 mismatch for %q", art.Path)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("extract %q: %w", dst, err)
	}
	return out.Close()
}
