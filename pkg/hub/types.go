package hub

import "strings"

// Kind selects which registry namespace a repository lives in.
type Kind string

const (
	KindModel   Kind = "model"
	KindDataset Kind = "dataset"
)

// Valid reports whether k is a kind the registry understands.
func (k Kind) Valid() bool {
	return k == KindModel || k == KindDataset
}

func (k Kind) apiPath() string {
	return string(k) + "s"
}

// urlPrefix is prepended to repository ids in file URLs. Models have none.
func (k Kind) urlPrefix() string {
	if k == KindDataset {
		return "datasets/"
	}
	return ""
}

// Resource is one model or dataset entry returned by a listing query.
type Resource struct {
	ID           string   `json:"id"`
	ModelID      string   `json:"modelId,omitempty"`
	Author       string   `json:"author,omitempty"`
	SHA          string   `json:"sha,omitempty"`
	Private      bool     `json:"private,omitempty"`
	Downloads    int      `json:"downloads,omitempty"`
	Likes        int      `json:"likes,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	LastModified string   `json:"lastModified,omitempty"`
}

// Identifier returns the "<org>/<name>" repository id.
func (r Resource) Identifier() string {
	if r.ID != "" {
		return r.ID
	}
	return r.ModelID
}

// Name returns the trailing path segment of the identifier.
func (r Resource) Name() string {
	id := r.Identifier()
	return id[strings.LastIndex(id, "/")+1:]
}
