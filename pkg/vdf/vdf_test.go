package vdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotkit/depotkit/pkg/errors"
)

const sampleConfig = `"InstallConfigStore"
{
	"Software"
	{
		"Valve"
		{
			"Steam"
			{
				"depots"
				{
					"228990"
					{
						"DecryptionKey"		"aabb"
					}
				}
				"Accounts"
				{
					"someuser"
					{
						"SteamID"		"76561198000000000"
					}
				}
			}
		}
	}
}
`

func TestParse_Structure(t *testing.T) {
	doc, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	root := doc.Root("installconfigstore")
	require.NotNil(t, root, "root lookup is case-insensitive")

	steam := root.Child("Software").Child("Valve").Child("Steam")
	require.NotNil(t, steam)

	depots := steam.Child("depots")
	require.NotNil(t, depots)
	entry := depots.Child("228990")
	require.NotNil(t, entry)
	assert.Equal(t, "aabb", entry.Child("DecryptionKey").Value)
}

func TestParse_CaseInsensitiveChild(t *testing.T) {
	doc, err := Parse([]byte(`"root" { "valve" { "steam" { } } }`))
	require.NoError(t, err)

	valve := doc.Root("root").ChildFold("Valve")
	require.NotNil(t, valve)
	require.NotNil(t, valve.ChildFold("STEAM"))
	assert.Nil(t, valve.Child("Steam"), "exact lookup stays case-sensitive")
}

func TestParse_CommentsAndBareTokens(t *testing.T) {
	input := `// header comment
"root"
{
	key		"value" // trailing comment
	"quoted"		bare
}
`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)

	root := doc.Root("root")
	require.NotNil(t, root)
	assert.Equal(t, "value", root.Child("key").Value)
	assert.Equal(t, "bare", root.Child("quoted").Value)
}

func TestParse_Escapes(t *testing.T) {
	doc, err := Parse([]byte(`"root" { "path" "C:\\Games\\Steam" "msg" "a\"b" }`))
	require.NoError(t, err)

	root := doc.Root("root")
	assert.Equal(t, `C:\Games\Steam`, root.Child("path").Value)
	assert.Equal(t, `a"b`, root.Child("msg").Value)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed section", `"root" { "key" "value"`},
		{"stray close", `}`},
		{"brace without key", `{ }`},
		{"key without value", `"root" { "key" }`},
		{"unterminated string", `"root`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Equal(t, errors.ErrConfigFormat, errors.GetErrorCode(err))
		})
	}
}

func TestSerialize_RoundTripPreservesOrderAndContent(t *testing.T) {
	doc, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	out := doc.Serialize()
	assert.Equal(t, sampleConfig, string(out), "parse/serialize of canonical output is the identity")
}

func TestSetLeaf_ReplacesInPlace(t *testing.T) {
	doc, err := Parse([]byte(`"root"
{
	"a"		"1"
	"b"		"2"
	"c"		"3"
}
`))
	require.NoError(t, err)

	root := doc.Root("root")
	root.SetLeaf("b", "20")

	require.Len(t, root.Children, 3)
	assert.Equal(t, "a", root.Children[0].Key)
	assert.Equal(t, "b", root.Children[1].Key)
	assert.Equal(t, "20", root.Children[1].Value)
	assert.Equal(t, "c", root.Children[2].Key)
}

func TestSetLeaf_AppendsWhenAbsent(t *testing.T) {
	root := &Node{Key: "root", Section: true}
	root.SetLeaf("x", "1")
	root.SetLeaf("y", "2")

	require.Len(t, root.Children, 2)
	assert.Equal(t, "x", root.Children[0].Key)
	assert.Equal(t, "y", root.Children[1].Key)
}

func TestEnsureSection(t *testing.T) {
	root := &Node{Key: "root", Section: true}

	depots := root.EnsureSection("depots")
	require.NotNil(t, depots)
	assert.True(t, depots.Section)

	again := root.EnsureSection("depots")
	assert.Same(t, depots, again, "existing section is reused")
	assert.Len(t, root.Children, 1)
}

func TestRemoveChild(t *testing.T) {
	root := &Node{Key: "root", Section: true}
	root.SetLeaf("a", "1")
	root.SetLeaf("b", "2")

	assert.True(t, root.RemoveChild("a"))
	assert.False(t, root.RemoveChild("a"), "second removal reports nothing removed")
	require.Len(t, root.Children, 1)
	assert.Equal(t, "b", root.Children[0].Key)
}

func TestSerialize_EscapesSpecialCharacters(t *testing.T) {
	root := &Node{Key: "root", Section: true}
	root.SetLeaf("path", `C:\Games`)

	doc := &Document{Nodes: []*Node{root}}
	out := string(doc.Serialize())
	assert.Contains(t, out, `"C:\\Games"`)

	back, err := Parse(doc.Serialize())
	require.NoError(t, err)
	assert.Equal(t, `C:\Games`, back.Root("root").Child("path").Value)
}
