package fetch

import "hubfetch/pkg/hub"

const (
	DefaultAuthor = "polymathic-ai"
	DefaultFamily = "UNetConvNext"

	BenchmarksPipeline = "models"
	MetadataPipeline   = "datasets"

	DefaultBenchmarksDir = "data/model-data/benchmarks"
	DefaultMetadataDir   = "data/datasets"
)

// BenchmarkFiles and MetadataFiles are fetched in this order for every resource.
var (
	BenchmarkFiles = []string{"model.safetensors", "config.json"}
	MetadataFiles  = []string{"{name}.yaml", "stats.yaml"}
)

// HubAPI is the subset of *hub.Client the metadata preset needs.
type HubAPI interface {
	Lister
	FileGetter
}

// Benchmarks returns the model pipeline: models of one family fetched through the local cache.
// Empty arguments take the package defaults.
func Benchmarks(l Lister, cache CachedDownloader, author, family, baseDir string) Config {
	if author == "" {
		author = DefaultAuthor
	}
	if family == "" {
		family = DefaultFamily
	}
	if baseDir == "" {
		baseDir = DefaultBenchmarksDir
	}
	return Config{
		Name:      BenchmarksPipeline,
		Kind:      hub.KindModel,
		Author:    author,
		BaseDir:   baseDir,
		Filenames: append([]string(nil), BenchmarkFiles...),
		Select:    FamilyFilter(family),
		Derive:    ModelTarget,
		Lister:    l,
		Fetcher:   CacheFetcher{Cache: cache},
	}
}

// Metadata returns the dataset pipeline: every dataset of author, YAML files fetched with direct GETs.
func Metadata(h HubAPI, author, baseDir string) Config {
	if author == "" {
		author = DefaultAuthor
	}
	if baseDir == "" {
		baseDir = DefaultMetadataDir
	}
	return Config{
		Name:      MetadataPipeline,
		Kind:      hub.KindDataset,
		Author:    author,
		BaseDir:   baseDir,
		Filenames: append([]string(nil), MetadataFiles...),
		Derive:    DatasetTarget,
		Lister:    h,
		Fetcher:   DirectFetcher{Hub: h},
	}
}
