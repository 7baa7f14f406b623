package fetch

import (
	"fmt"
	"path/filepath"
	"strings"

	"hubfetch/pkg/hub"
)

// Target is where the artifacts of one resource are written.
type Target struct {
	Resource hub.Resource
	// Name is the directory basename and the value of {name} in filename patterns.
	Name string
	Dir  string
}

// ModelID is a parsed "<org>/<model>-<dataset>" identifier.
type ModelID struct {
	Raw     string
	Org     string
	Model   string
	Dataset string
}

// DirName joins the model and dataset parts back into a directory name.
func (m ModelID) DirName() string {
	return m.Model + "-" + m.Dataset
}

// MalformedIDError reports an identifier that does not follow the model naming scheme.
type MalformedIDError struct {
	ID     string
	Reason string
}

func (e *MalformedIDError) Error() string {
	return fmt.Sprintf("malformed model id %q: %s", e.ID, e.Reason)
}

// ParseModelID splits the trailing segment of id on its first "-". The dataset part keeps any further dashes.
func ParseModelID(id string) (ModelID, error) {
	org, name := "", id
	if i := strings.LastIndex(id, "/"); i >= 0 {
		org, name = id[:i], id[i+1:]
	}
	if name == "" {
		return ModelID{}, &MalformedIDError{ID: id, Reason: "empty name"}
	}

	model, dataset, ok := strings.Cut(name, "-")
	switch {
	case !ok:
		return ModelID{}, &MalformedIDError{ID: id, Reason: "missing '-' between model and dataset"}
	case model == "":
		return ModelID{}, &MalformedIDError{ID: id, Reason: "empty model name"}
	case dataset == "":
		return ModelID{}, &MalformedIDError{ID: id, Reason: "empty dataset name"}
	}

	return ModelID{Raw: id, Org: org, Model: model, Dataset: dataset}, nil
}

// DeriveFunc maps a listed resource to its target directory under baseDir.
type DeriveFunc func(baseDir string, r hub.Resource) (Target, error)

// ModelTarget derives <baseDir>/<model>-<dataset>.
func ModelTarget(baseDir string, r hub.Resource) (Target, error) {
	id, err := ParseModelID(r.Identifier())
	if err != nil {
		return Target{}, err
	}
	name := id.DirName()
	return Target{Resource: r, Name: name, Dir: filepath.Join(baseDir, name)}, nil
}

// DatasetTarget derives <baseDir>/<name> from everything after the last "/". It never fails.
func DatasetTarget(baseDir string, r hub.Resource) (Target, error) {
	name := r.Name()
	return Target{Resource: r, Name: name, Dir: filepath.Join(baseDir, name)}, nil
}

// SelectFunc reports whether a listed resource should be processed.
type SelectFunc func(hub.Resource) bool

// FamilyFilter keeps resources whose name portion contains marker.
func FamilyFilter(marker string) SelectFunc {
	return func(r hub.Resource) bool {
		return strings.Contains(r.Name(), marker)
	}
}

// ExpandFilename substitutes {name} with the target name.
func ExpandFilename(pattern string, t Target) string {
	return strings.ReplaceAll(pattern, "{name}", t.Name)
}
