package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/deaddrop/internal/client/client"
	"github.com/dmitrijs2005/deaddrop/internal/client/config"
	"github.com/dmitrijs2005/deaddrop/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	calls []string

	codename  string
	loginErr  error
	lookup    *rpc.LookupResponse
	submitRes *rpc.SubmitResponse
	deleteErr error
	deleted   int
	key       []byte
	closed    bool

	gotCodename string
	gotMessage  string
	gotUpload   string
	gotBody     string
}

func (f *fakeAPI) Generate(context.Context) (string, error) {
	f.calls = append(f.calls, "generate")
	return f.codename, nil
}

func (f *fakeAPI) Create(context.Context) error {
	f.calls = append(f.calls, "create")
	return nil
}

func (f *fakeAPI) Login(_ context.Context, cn string) error {
	f.calls = append(f.calls, "login")
	f.gotCodename = cn
	return f.loginErr
}

func (f *fakeAPI) Logout(context.Context) (string, error) {
	f.calls = append(f.calls, "logout")
	return "You were logged out.", nil
}

func (f *fakeAPI) Lookup(context.Context) (*rpc.LookupResponse, error) {
	f.calls = append(f.calls, "lookup")
	return f.lookup, nil
}

func (f *fakeAPI) Submit(_ context.Context, message string, file *client.Upload) (*rpc.SubmitResponse, error) {
	f.calls = append(f.calls, "submit")
	f.gotMessage = message
	if file != nil {
		f.gotUpload = file.Name
		b, _ := io.ReadAll(file.Body)
		f.gotBody = string(b)
	}
	return f.submitRes, nil
}

func (f *fakeAPI) DeleteAll(context.Context) (int, error) {
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.deleted, nil
}

func (f *fakeAPI) Metadata(context.Context) (*rpc.MetadataResponse, error) {
	f.calls = append(f.calls, "metadata")
	return &rpc.MetadataResponse{Version: "v9", GoVersion: "go1.24"}, nil
}

func (f *fakeAPI) JournalistKey(context.Context) ([]byte, error) {
	f.calls = append(f.calls, "key")
	return f.key, nil
}

func (f *fakeAPI) Close() error {
	f.closed = true
	return nil
}

func newTestApp(api *fakeAPI, input string) (*App, *bytes.Buffer) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	var out bytes.Buffer
	return NewApp(cfg, api, strings.NewReader(input), &out), &out
}

func stubCodename(t *testing.T, cn string) {
	t.Helper()
	orig := getCodename
	getCodename = func(io.Writer) ([]byte, error) { return []byte(cn), nil }
	t.Cleanup(func() { getCodename = orig })
}

func TestApp_GenerateCreatesSource(t *testing.T) {
	api := &fakeAPI{codename: "alpha bravo charlie"}
	a, out := newTestApp(api, "")

	require.NoError(t, a.Generate(context.Background()))
	assert.Equal(t, []string{"generate", "create"}, api.calls)
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "alpha bravo charlie")
}

func TestApp_Login(t *testing.T) {
	stubCodename(t, "alpha bravo")
	api := &fakeAPI{}
	a, out := newTestApp(api, "")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "alpha bravo", api.gotCodename)
	assert.True(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "Logged in.")
}

func TestApp_LoginRejected(t *testing.T) {
	stubCodename(t, "nope")
	api := &fakeAPI{loginErr: &client.Error{Kind: client.ErrUnauthorized, Message: "Sorry, that is not a recognized codename."}}
	a, out := newTestApp(api, "")
	a.loggedIn = true

	err := a.Login(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "not a recognized codename")
}

func TestApp_Status(t *testing.T) {
	api := &fakeAPI{lookup: &rpc.LookupResponse{JournalistDesignation: "quiet otter", HasReplies: true, Submissions: 3}}
	a, out := newTestApp(api, "")

	require.NoError(t, a.Status(context.Background()))
	s := out.String()
	assert.Contains(t, s, "quiet otter")
	assert.Contains(t, s, "Submissions so far: 3")
	assert.Contains(t, s, "You have replies")
	assert.Contains(t, s, "still being prepared")
}

func TestApp_SubmitPromptsForMessageAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leak.txt")
	require.NoError(t, os.WriteFile(path, []byte("secret"), 0o600))

	api := &fakeAPI{submitRes: &rpc.SubmitResponse{OK: true, IsFirst: true}}
	a, out := newTestApp(api, "line one\nline two\n\n"+path+"\n")

	require.NoError(t, a.Submit(context.Background()))
	assert.Equal(t, "line one\nline two", api.gotMessage)
	assert.Equal(t, "leak.txt", api.gotUpload)
	assert.Equal(t, "secret", api.gotBody)
	assert.Contains(t, out.String(), "Check back later for replies")
}

func TestApp_SubmitWithMissingFile(t *testing.T) {
	api := &fakeAPI{}
	a, _ := newTestApp(api, "")

	err := a.SubmitWith(context.Background(), "hi", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Empty(t, api.calls)
}

func TestApp_SubmitMessageOnly(t *testing.T) {
	api := &fakeAPI{submitRes: &rpc.SubmitResponse{OK: true}}
	a, out := newTestApp(api, "")

	require.NoError(t, a.SubmitWith(context.Background(), "hi", ""))
	assert.Empty(t, api.gotUpload)
	assert.Contains(t, out.String(), "We received your submission.")
	assert.NotContains(t, out.String(), "Check back later")
}

func TestApp_DeleteReplies(t *testing.T) {
	api := &fakeAPI{deleted: 2}
	a, out := newTestApp(api, "")
	require.NoError(t, a.DeleteReplies(context.Background()))
	assert.Contains(t, out.String(), "Deleted 2 replies.")

	api.deleted = 0
	require.NoError(t, a.DeleteReplies(context.Background()))
	assert.Contains(t, out.String(), "There were no replies to delete.")
	assert.NotContains(t, out.String(), "Error:")

	api.deleteErr = &client.Error{Kind: client.ErrUnauthorized, Message: "You need to log in first."}
	a.loggedIn = true
	err := a.DeleteReplies(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, a.isLoggedIn())
}

func TestApp_LogoutMetadataKey(t *testing.T) {
	api := &fakeAPI{key: []byte{0xab, 0xcd}}
	a, out := newTestApp(api, "")
	a.loggedIn = true

	require.NoError(t, a.Logout(context.Background()))
	assert.False(t, a.isLoggedIn())

	require.NoError(t, a.Metadata(context.Background()))
	require.NoError(t, a.JournalistKey(context.Background()))

	s := out.String()
	assert.Contains(t, s, "You were logged out.")
	assert.Contains(t, s, "v9")
	assert.Contains(t, s, "abcd")

	api.key = nil
	require.NoError(t, a.JournalistKey(context.Background()))
	assert.Contains(t, out.String(), "No journalist key is configured.")
}
