package fetcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeNetrc writes a netrc file with the given entries and returns its path.
func writeNetrc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netrc")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAuthFromNetrc(t *testing.T) {
	path := writeNetrc(t, "machine urs.earthdata.nasa.gov login alice password s3cret\nmachine other.example login bob password x\n")

	creds, err := AuthFromNetrc(EarthdataHost, path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{User: "alice", Password: "s3cret"}, creds)
}

func TestAuthFromNetrc_MissingMachine(t *testing.T) {
	path := writeNetrc(t, "machine other.example login bob password x\n")

	_, err := AuthFromNetrc(EarthdataHost, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry")
}

func TestAuthFromNetrc_DefaultEntry(t *testing.T) {
	path := writeNetrc(t, "default login anon password guest\n")

	creds, err := AuthFromNetrc(EarthdataHost, path)
	require.NoError(t, err)
	assert.Equal(t, "anon", creds.User)
}

func TestAuthFromNetrc_MissingFile(t *testing.T) {
	_, err := AuthFromNetrc(EarthdataHost, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
