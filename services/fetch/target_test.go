package fetch

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubfetch/pkg/hub"
)

func TestParseModelID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    ModelID
		wantErr bool
	}{
		{
			name: "dataset keeps remaining dashes",
			id:   "org/name1-name2-name3",
			want: ModelID{Raw: "org/name1-name2-name3", Org: "org", Model: "name1", Dataset: "name2-name3"},
		},
		{
			name: "two parts",
			id:   "polymathic-ai/UNetConvNext-shear_flow",
			want: ModelID{Raw: "polymathic-ai/UNetConvNext-shear_flow", Org: "polymathic-ai", Model: "UNetConvNext", Dataset: "shear_flow"},
		},
		{
			name: "no org",
			id:   "model-data",
			want: ModelID{Raw: "model-data", Model: "model", Dataset: "data"},
		},
		{name: "no separator", id: "org/onlyname", wantErr: true},
		{name: "empty model", id: "org/-dataset", wantErr: true},
		{name: "empty dataset", id: "org/model-", wantErr: true},
		{name: "empty name", id: "org/", wantErr: true},
		{name: "empty id", id: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModelID(tt.id)
			if tt.wantErr {
				var malformed *MalformedIDError
				require.True(t, errors.As(err, &malformed), "expected MalformedIDError, got %v", err)
				assert.Equal(t, tt.id, malformed.ID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelTarget(t *testing.T) {
	target, err := ModelTarget("base", hub.Resource{ID: "org/name1-name2-name3"})
	require.NoError(t, err)
	assert.Equal(t, "name1-name2-name3", target.Name)
	assert.Equal(t, filepath.Join("base", "name1-name2-name3"), target.Dir)

	_, err = ModelTarget("base", hub.Resource{ID: "org/onlyname"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org/onlyname")
}

func TestDatasetTarget(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "org/foo", want: filepath.Join("data", "foo")},
		{id: "org/foo-bar", want: filepath.Join("data", "foo-bar")},
		{id: "bare", want: filepath.Join("data", "bare")},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			target, err := DatasetTarget("data", hub.Resource{ID: tt.id})
			require.NoError(t, err)
			assert.Equal(t, tt.want, target.Dir)
		})
	}
}

func TestFamilyFilterMatchesNamePortion(t *testing.T) {
	keep := FamilyFilter("UNetConvNext")

	assert.True(t, keep(hub.Resource{ID: "polymathic-ai/UNetConvNext-shear_flow"}))
	assert.False(t, keep(hub.Resource{ID: "polymathic-ai/FNO-shear_flow"}))
	assert.False(t, keep(hub.Resource{ID: "UNetConvNext-lab/FNO-shear_flow"}))
}

func TestExpandFilename(t *testing.T) {
	target := Target{Name: "shear_flow"}
	assert.Equal(t, "shear_flow.yaml", ExpandFilename("{name}.yaml", target))
	assert.Equal(t, "stats.yaml", ExpandFilename("stats.yaml", target))
}
