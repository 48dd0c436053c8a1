package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/deaddrop/internal/client/client"
	"github.com/dmitrijs2005/deaddrop/internal/client/config"
	"github.com/dmitrijs2005/deaddrop/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDial(t *testing.T, api *fakeAPI) *config.Config {
	t.Helper()
	got := &config.Config{}
	orig := dial
	dial = func(c *config.Config) (client.Client, error) {
		*got = *c
		return api, nil
	}
	t.Cleanup(func() { dial = orig })
	return got
}

func TestRoot_MetadataCommand(t *testing.T) {
	api := &fakeAPI{}
	stubDial(t, api)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"metadata"})

	require.NoError(t, root.Execute())
	assert.Equal(t, []string{"metadata"}, api.calls)
	assert.Contains(t, out.String(), "v9")
	assert.True(t, api.closed)
}

func TestRoot_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.toml")
	require.NoError(t, os.WriteFile(path, []byte("server_endpoint_addr = \"file:1\"\nchunk_size = 2048\n"), 0o600))

	api := &fakeAPI{key: []byte{1}}
	got := stubDial(t, api)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"key", "-c", path, "-a", "flag:2", "-t", "5s"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "flag:2", got.ServerEndpointAddr)
	assert.Equal(t, 5*time.Second, got.RequestTimeout)
	assert.Equal(t, 2048, got.ChunkSize)
}

func TestRoot_SubmitCommand(t *testing.T) {
	stubCodename(t, "alpha bravo")
	api := &fakeAPI{submitRes: &rpc.SubmitResponse{OK: true}}
	stubDial(t, api)

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"submit", "-m", "hello"})

	require.NoError(t, root.Execute())
	assert.Equal(t, []string{"login", "submit"}, api.calls)
	assert.Equal(t, "hello", api.gotMessage)
}

func TestRoot_InteractiveByDefault(t *testing.T) {
	api := &fakeAPI{}
	stubDial(t, api)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(bytes.NewBufferString("metadata\nquit\n"))
	root.SetArgs([]string{})

	require.NoError(t, root.Execute())
	assert.Equal(t, []string{"metadata"}, api.calls)
	assert.Contains(t, out.String(), "Bye!")
}

func TestRoot_DialError(t *testing.T) {
	orig := dial
	dial = func(*config.Config) (client.Client, error) { return nil, errors.New("bad target") }
	t.Cleanup(func() { dial = orig })

	root := NewRootCommand()
	root.SetArgs([]string{"metadata"})
	assert.ErrorContains(t, root.Execute(), "bad target")
}

func TestRoot_BadConfigFile(t *testing.T) {
	stubDial(t, &fakeAPI{})

	root := NewRootCommand()
	root.SetArgs([]string{"metadata", "-c", filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, root.Execute())
}
