package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyInput(t *testing.T) {
	refs := Parse("")
	require.NotNil(t, refs)
	assert.Empty(t, refs)
}

func TestParse_NugetDirective(t *testing.T) {
	src := "// #nuget: Newtonsoft.Json@13.0.3\nConsole.WriteLine(1);\n"
	refs := Parse(src)
	require.Len(t, refs, 1)
	assert.Equal(t, "Newtonsoft.Json", refs[0].ID)
	assert.Equal(t, "13.0.3", refs[0].Version)
}

func TestParse_PackageDirective_CaseInsensitive(t *testing.T) {
	src := "// #PACKAGE: Serilog\n"
	refs := Parse(src)
	require.Len(t, refs, 1)
	assert.Equal(t, "Serilog", refs[0].ID)
	assert.Empty(t, refs[0].Version)
}

func TestParse_VersionlessRef(t *testing.T) {
	refs := Parse("// #nuget: Humanizer")
	require.Len(t, refs, 1)
	assert.Equal(t, "Humanizer", refs[0].ID)
	assert.Empty(t, refs[0].Version)
}

func TestParse_RDirectiveSpelling(t *testing.T) {
	src := `#r "nuget: Dapper, 2.1.0"` + "\n"
	refs := Parse(src)
	require.Len(t, refs, 1)
	assert.Equal(t, "Dapper", refs[0].ID)
	assert.Equal(t, "2.1.0", refs[0].Version)
}

func TestParse_RDirectiveNoVersion(t *testing.T) {
	refs := Parse(`#r "nuget: Dapper"`)
	require.Len(t, refs, 1)
	assert.Equal(t, "Dapper", refs[0].ID)
	assert.Empty(t, refs[0].Version)
}

func TestParse_DedupFirstSeenOrder(t *testing.T) {
	src := `
// #nuget: A@1.0.0
// #package: B
// #nuget: A@1.0.0
// #nuget: a@1.0.0
`
	refs := Parse(src)
	require.Len(t, refs, 2)
	assert.Equal(t, "A", refs[0].ID)
	assert.Equal(t, "B", refs[1].ID)
}

func TestParse_MultipleDistinctVersionsOfSameID(t *testing.T) {
	src := "// #nuget: A@1.0.0\n// #nuget: A@2.0.0\n"
	refs := Parse(src)
	require.Len(t, refs, 2)
}

func TestParse_IgnoresUnrelatedComments(t *testing.T) {
	src := "// this is a normal comment\n// #notadirective: X\n"
	refs := Parse(src)
	assert.Empty(t, refs)
}

func TestParse_WhitespaceTolerant(t *testing.T) {
	src := "   //    #nuget:    Foo.Bar@1.0.0   \n"
	refs := Parse(src)
	require.Len(t, refs, 1)
	assert.Equal(t, "Foo.Bar", refs[0].ID)
	assert.Equal(t, "1.0.0", refs[0].Version)
}

func TestPackageRef_StringRoundTrip(t *testing.T) {
	tests := []PackageRef{
		{ID: "Newtonsoft.Json", Version: "13.0.3"},
		{ID: "Humanizer"},
	}
	for _, want := range tests {
		serialized := want.String()
		reparsed := Parse("// #nuget: " + serialized)
		require.Len(t, reparsed, 1)
		assert.Equal(t, want.ID, reparsed[0].ID)
		assert.Equal(t, want.Version, reparsed[0].Version)
	}
}
