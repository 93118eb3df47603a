package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/csx/directive"
	"github.com/willibrandon/csx/manifest"
)

type fakeVersions struct {
	versions map[string]string
	err      error
	calls    int
}

func (f *fakeVersions) LatestVersion(_ context.Context, id string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.versions[id]
	if !ok {
		return "", errors.New("unknown package")
	}
	return v, nil
}

type fakeManifests struct {
	deps  map[string][]manifest.Dependency
	calls map[string]int
	err   map[string]error
}

func newFakeManifests() *fakeManifests {
	return &fakeManifests{deps: make(map[string][]manifest.Dependency), calls: make(map[string]int), err: make(map[string]error)}
}

func (f *fakeManifests) Dependencies(_ context.Context, id, version, _ string) ([]manifest.Dependency, error) {
	key := id + "@" + version
	f.calls[key]++
	if err, ok := f.err[key]; ok {
		return nil, err
	}
	return f.deps[key], nil
}

func TestWalk_EmptyRefs(t *testing.T) {
	w := NewWalker(&fakeVersions{}, newFakeManifests(), "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestWalk_SinglePackageNoDeps(t *testing.T) {
	m := newFakeManifests()
	w := NewWalker(&fakeVersions{}, m, "core-8.0", nil)

	resolved, err := w.Walk(context.Background(), []directive.PackageRef{{ID: "A", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, PackageCoord{ID: "A", Version: "1.0.0"}, resolved[0])
}

func TestWalk_VersionlessRefBoundBeforeWalk(t *testing.T) {
	versions := &fakeVersions{versions: map[string]string{"A": "13.0.3"}}
	m := newFakeManifests()
	w := NewWalker(versions, m, "core-8.0", nil)

	resolved, err := w.Walk(context.Background(), []directive.PackageRef{{ID: "A"}})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "13.0.3", resolved[0].Version)
	assert.Equal(t, 1, versions.calls)
}

func TestWalk_TransitiveDependency(t *testing.T) {
	m := newFakeManifests()
	m.deps["A@1.0.0"] = []manifest.Dependency{{ID: "B", Version: "2.0.0", DeclaredRuntime: "core-8.0"}}

	w := NewWalker(&fakeVersions{}, m, "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), []directive.PackageRef{{ID: "A", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "A", resolved[0].ID)
	assert.Equal(t, "B", resolved[1].ID)
}

func TestWalk_VisitsEachCoordAtMostOnce(t *testing.T) {
	m := newFakeManifests()
	m.deps["A@1.0.0"] = []manifest.Dependency{
		{ID: "B", Version: "2.0.0"},
		{ID: "C", Version: "3.0.0"},
	}
	m.deps["B@2.0.0"] = []manifest.Dependency{{ID: "C", Version: "3.0.0"}}

	w := NewWalker(&fakeVersions{}, m, "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), []directive.PackageRef{{ID: "A", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, 1, m.calls["C@3.0.0"])
}

func TestWalk_ManifestErrorPrunesSubtreeButKeepsPackage(t *testing.T) {
	m := newFakeManifests()
	m.err["A@1.0.0"] = errors.New("boom")

	w := NewWalker(&fakeVersions{}, m, "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), []directive.PackageRef{{ID: "A", Version: "1.0.0"}})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "A", resolved[0].ID)
}

func TestWalk_VersionResolutionFailureDropsPackage(t *testing.T) {
	versions := &fakeVersions{err: errors.New("registry down")}
	m := newFakeManifests()

	w := NewWalker(versions, m, "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), []directive.PackageRef{{ID: "A"}})
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestWalk_DiamondDependencyNoConflictResolution(t *testing.T) {
	// spec.md's Non-goals explicitly exclude diamond-dependency conflict
	// resolution: the dedup key is (id, version), so two packages naming
	// different versions of the same id are NOT collapsed into one — both
	// flow through to the resolved set. Only an exact (id, version) repeat
	// is deduplicated (the trivial "first wins" case the Non-goal names).
	m := newFakeManifests()
	m.deps["A@1.0.0"] = []manifest.Dependency{{ID: "D", Version: "1.0.0"}}
	m.deps["B@1.0.0"] = []manifest.Dependency{{ID: "D", Version: "2.0.0"}}

	w := NewWalker(&fakeVersions{}, m, "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), []directive.PackageRef{
		{ID: "A", Version: "1.0.0"},
		{ID: "B", Version: "1.0.0"},
	})
	require.NoError(t, err)

	var dVersions []string
	for _, c := range resolved {
		if c.ID == "D" {
			dVersions = append(dVersions, c.Version)
		}
	}
	assert.ElementsMatch(t, []string{"1.0.0", "2.0.0"}, dVersions)
}

func TestWalk_ExactDuplicateCoordDeduplicated(t *testing.T) {
	m := newFakeManifests()
	m.deps["A@1.0.0"] = []manifest.Dependency{{ID: "D", Version: "1.0.0"}}
	m.deps["B@1.0.0"] = []manifest.Dependency{{ID: "D", Version: "1.0.0"}}

	w := NewWalker(&fakeVersions{}, m, "core-8.0", nil)
	resolved, err := w.Walk(context.Background(), []directive.PackageRef{
		{ID: "A", Version: "1.0.0"},
		{ID: "B", Version: "1.0.0"},
	})
	require.NoError(t, err)

	count := 0
	for _, c := range resolved {
		if c.ID == "D" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
