package lua

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotkit/depotkit/pkg/errors"
)

const testKey = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestAppIDFromFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     uint32
		wantErr  bool
	}{
		{"simple", "12345.lua", 12345, false},
		{"with directory", "/bundles/drop/480.lua", 480, false},
		{"uppercase extension", "730.LUA", 730, false},
		{"non-numeric stem", "portal.lua", 0, true},
		{"wrong extension", "12345.txt", 0, true},
		{"negative", "-5.lua", 0, true},
		{"trailing garbage", "123abc.lua", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppIDFromFilename(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrNaming, errors.GetErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_BasicBundle(t *testing.T) {
	content := `addappid(100)
addappid(200, 1, "` + testKey + `")
setManifestid(200, "555", 0)
`
	cred, err := Parse("100.lua", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, uint32(100), cred.AppID)
	require.Len(t, cred.Depots, 1)
	assert.Equal(t, uint32(200), cred.Depots[0].DepotID)
	assert.Equal(t, uint64(555), cred.Depots[0].ManifestID)
	assert.Equal(t, testKey, cred.Depots[0].DecryptionKey)
}

func TestParse_AddDepotForm(t *testing.T) {
	content := `adddepot(301, "` + testKey + `")
setManifestid(301, "9001")
`
	cred, err := Parse("300.lua", []byte(content))
	require.NoError(t, err)

	require.Len(t, cred.Depots, 1)
	assert.Equal(t, uint32(301), cred.Depots[0].DepotID)
	assert.Equal(t, uint64(9001), cred.Depots[0].ManifestID)
}

func TestParse_KeyIsLowercased(t *testing.T) {
	upper := strings.ToUpper(testKey)
	content := `addappid(200, 1, "` + upper + `")
setManifestid(200, "1")
`
	cred, err := Parse("100.lua", []byte(content))
	require.NoError(t, err)
	assert.Equal(t, testKey, cred.Depots[0].DecryptionKey)
}

func TestParse_PreservesFirstSeenOrder(t *testing.T) {
	content := `addappid(230, 1, "` + testKey + `")
addappid(210, 1, "` + testKey + `")
addappid(220, 1, "` + testKey + `")
setManifestid(230, "3")
setManifestid(210, "1")
setManifestid(220, "2")
`
	cred, err := Parse("100.lua", []byte(content))
	require.NoError(t, err)

	require.Len(t, cred.Depots, 3)
	assert.Equal(t, uint32(230), cred.Depots[0].DepotID)
	assert.Equal(t, uint32(210), cred.Depots[1].DepotID)
	assert.Equal(t, uint32(220), cred.Depots[2].DepotID)
}

func TestParse_LaterBindingOverridesEarlier(t *testing.T) {
	other := strings.Repeat("ab", 32)
	content := `addappid(200, 1, "` + testKey + `")
setManifestid(200, "555")
addappid(200, 1, "` + other + `")
setManifestid(200, "777")
`
	cred, err := Parse("100.lua", []byte(content))
	require.NoError(t, err)

	require.Len(t, cred.Depots, 1)
	assert.Equal(t, uint64(777), cred.Depots[0].ManifestID)
	assert.Equal(t, other, cred.Depots[0].DecryptionKey)
}

func TestParse_CommentsAndBlankLines(t *testing.T) {
	content := `-- generated bundle

addappid(100)
-- depot follows
addappid(200, 1, "` + testKey + `")
setManifestid(200, "555")

`
	cred, err := Parse("100.lua", []byte(content))
	require.NoError(t, err)
	assert.Len(t, cred.Depots, 1)
}

func TestParse_OwnAppIDIsNotADepot(t *testing.T) {
	content := `addappid(100, 1, "` + testKey + `")
addappid(200, 1, "` + testKey + `")
setManifestid(200, "555")
`
	cred, err := Parse("100.lua", []byte(content))
	require.NoError(t, err)

	require.Len(t, cred.Depots, 1)
	assert.Equal(t, uint32(200), cred.Depots[0].DepotID)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"comments only", "-- nothing here\n"},
		{"short key", `addappid(200, 1, "abcd")` + "\n" + `setManifestid(200, "1")`},
		{"key without manifest", `addappid(200, 1, "` + testKey + `")`},
		{"manifest without key", `setManifestid(200, "555")`},
		{"unrecognized statement", `print("hello")`},
		{"partial match", `addappid(200, 1, "` + testKey + `") -- trailing comment`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("100.lua", []byte(tt.content))
			require.Error(t, err)
			assert.Equal(t, errors.ErrParse, errors.GetErrorCode(err))
		})
	}
}
