package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/deaddrop/internal/codename"
	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/dbx"
	"github.com/dmitrijs2005/deaddrop/internal/identity"
	"github.com/dmitrijs2005/deaddrop/internal/logging/logtest"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/dmitrijs2005/deaddrop/internal/server/provisioner"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/replies"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/sources"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/submissions"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"github.com/dmitrijs2005/deaddrop/internal/server/storage"
	"github.com/dmitrijs2005/deaddrop/internal/server/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
	_ "modernc.org/sqlite"
)

// --- in-memory repositories ---

type memSources struct {
	mu     sync.Mutex
	byFS   map[string]*models.Source
	getErr error
}

func (m *memSources) Create(_ context.Context, src *models.Source) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byFS[src.FilesystemID]; ok {
		return nil, common.ErrAlreadyExists
	}
	src.ID = "id-" + src.FilesystemID[:8]
	src.Pending = true
	src.CreatedAt = time.Now()
	cp := *src
	m.byFS[src.FilesystemID] = &cp
	return src, nil
}

func (m *memSources) GetByFilesystemID(_ context.Context, fsid string) (*models.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.byFS[fsid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSources) byID(id string) *models.Source {
	for _, s := range m.byFS {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memSources) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID(id)
	if s == nil {
		return common.ErrorNotFound
	}
	delete(m.byFS, s.FilesystemID)
	return nil
}

func (m *memSources) IncrementInteractionCount(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID(id)
	if s == nil {
		return 0, common.ErrorNotFound
	}
	s.InteractionCount++
	return s.InteractionCount, nil
}

func (m *memSources) SetPublicKey(_ context.Context, fsid string, pub []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byFS[fsid]
	if !ok {
		return common.ErrorNotFound
	}
	s.PublicKey = append([]byte(nil), pub...)
	return nil
}

func (m *memSources) MarkActive(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.byID(id)
	if s == nil {
		return common.ErrorNotFound
	}
	s.Pending = false
	return nil
}

type memSubmissions struct {
	mu        sync.Mutex
	rows      []*models.Submission
	createErr error
}

func (m *memSubmissions) Create(_ context.Context, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.rows = append(m.rows, s)
	return nil
}

func (m *memSubmissions) CountBySource(_ context.Context, sourceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.rows {
		if s.SourceID == sourceID {
			n++
		}
	}
	return n, nil
}

func (m *memSubmissions) ListBySource(_ context.Context, sourceID string) ([]*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Submission
	for _, s := range m.rows {
		if s.SourceID == sourceID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memReplies struct {
	mu   sync.Mutex
	rows []*models.Reply
}

func (m *memReplies) Create(_ context.Context, r *models.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
	return nil
}

func (m *memReplies) CountBySource(ctx context.Context, sourceID string) (int64, error) {
	l, _ := m.ListBySource(ctx, sourceID)
	return int64(len(l)), nil
}

func (m *memReplies) ListBySource(_ context.Context, sourceID string) ([]*models.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Reply
	for _, r := range m.rows {
		if r.SourceID == sourceID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReplies) DeleteBySource(_ context.Context, sourceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keep []*models.Reply
	var n int64
	for _, r := range m.rows {
		if r.SourceID == sourceID {
			n++
			continue
		}
		keep = append(keep, r)
	}
	m.rows = keep
	return n, nil
}

type memRepoManager struct {
	sources     *memSources
	submissions *memSubmissions
	replies     *memReplies
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Sources(dbx.DBTX) sources.Repository          { return m.sources }
func (m *memRepoManager) Submissions(dbx.DBTX) submissions.Repository  { return m.submissions }
func (m *memRepoManager) Replies(dbx.DBTX) replies.Repository          { return m.replies }

type fakeProvisioner struct {
	mu       sync.Mutex
	calls    []string
	decision provisioner.Decision
}

func (f *fakeProvisioner) ProvisionIfNeeded(_ context.Context, src *models.Source) provisioner.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, src.FilesystemID)
	return f.decision
}

// --- fixture ---

type fixture struct {
	svc   *SourceService
	repos *memRepoManager
	prov  *fakeProvisioner
	store *storage.Local
	log   *logtest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	hasher, err := identity.NewHasher([]byte("test-pepper"), identity.Params{
		Algorithm: identity.AlgorithmScrypt, ScryptN: 1 << 10, ScryptR: 8, ScryptP: 1,
	}, codename.DefaultMaxCodenameLen)
	require.NoError(t, err)

	pub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	log := logtest.New()
	repos := &memRepoManager{
		sources:     &memSources{byFS: map[string]*models.Source{}},
		submissions: &memSubmissions{},
		replies:     &memReplies{},
	}
	prov := &fakeProvisioner{decision: provisioner.Queued}

	svc := NewSourceService(db, repos, Deps{
		Codenames:   codename.NewGenerator(codename.DefaultWords(), codename.DefaultNumWords, codename.DefaultMaxCodenameLen, log),
		Hasher:      hasher,
		Store:       store,
		Provisioner: prov,
		Packaging: submission.Options{
			SpoolThreshold: 1024,
			SpoolDir:       t.TempDir(),
			JournalistKey:  pub[:],
		},
		Policy: session.DefaultPolicy(),
	}, log)

	return &fixture{svc: svc, repos: repos, prov: prov, store: store, log: log}
}

func (f *fixture) register(t *testing.T) (session.State, string) {
	t.Helper()
	ctx := context.Background()
	st, cn, err := f.svc.GenerateCodename(ctx, session.State{})
	require.NoError(t, err)
	st, err = f.svc.CreateSource(ctx, st)
	require.NoError(t, err)
	return st, cn
}

// --- tests ---

func TestGenerateCodename(t *testing.T) {
	f := newFixture(t)

	st, cn, err := f.svc.GenerateCodename(context.Background(), session.State{})
	require.NoError(t, err)
	assert.Len(t, strings.Fields(cn), codename.DefaultNumWords)
	assert.Equal(t, cn, st.Codename)
	assert.False(t, st.LoggedIn())
	assert.False(t, st.ExpiresAt.IsZero())
}

func TestGenerateCodename_AlreadyLoggedIn(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	got, cn, err := f.svc.GenerateCodename(context.Background(), st)
	assert.ErrorIs(t, err, common.ErrAlreadyLoggedIn)
	assert.Empty(t, cn)
	assert.Equal(t, st.Identity, got.Identity)
}

func TestCreateSource(t *testing.T) {
	f := newFixture(t)
	st, cn := f.register(t)

	assert.True(t, st.LoggedIn())
	assert.Empty(t, st.Codename)

	src, err := f.repos.sources.GetByFilesystemID(context.Background(), st.Identity)
	require.NoError(t, err)
	assert.True(t, src.Pending)
	assert.NotEmpty(t, src.JournalistDesignation)
	assert.NotContains(t, st.Identity, cn)
}

func TestCreateSource_NoCodename(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateSource(context.Background(), session.State{})
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestCreateSource_ConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, _, err := f.svc.GenerateCodename(ctx, session.State{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	states := make([]session.State, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i], results[i] = f.svc.CreateSource(ctx, st)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for i, err := range results {
		switch {
		case err == nil:
			ok++
			assert.True(t, states[i].LoggedIn())
		case errors.Is(err, common.ErrDuplicateCodename):
			dup++
			assert.Empty(t, states[i].Codename)
			assert.False(t, states[i].LoggedIn())
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Len(t, f.repos.sources.byFS, 1)
	assert.Equal(t, 1, f.log.Count("ERROR", "attempt to create a source with duplicate codename"))
}

func TestValidateAndLogin(t *testing.T) {
	f := newFixture(t)
	st, cn := f.register(t)

	got, fsid, err := f.svc.ValidateAndLogin(context.Background(), "  "+cn+"\n")
	require.NoError(t, err)
	assert.Equal(t, st.Identity, fsid)
	assert.Equal(t, fsid, got.Identity)
}

func TestValidateAndLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, _, err := f.svc.ValidateAndLogin(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = f.svc.ValidateAndLogin(context.Background(), strings.Repeat("a", codename.DefaultMaxCodenameLen+1))
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = f.svc.ValidateAndLogin(context.Background(), "bad <script>")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	st, _, err := f.svc.ValidateAndLogin(context.Background(), "unknown words here")
	assert.ErrorIs(t, err, common.ErrNotRecognized)
	assert.True(t, st.IsZero())
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	next, src, err := f.svc.Authorize(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, st.Identity, src.FilesystemID)
	assert.False(t, next.ExpiresAt.Before(st.ExpiresAt))
}

func TestAuthorize_Expired(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	later := st.ExpiresAt.Add(time.Second)
	ctx := session.WithPolicy(context.Background(), session.Policy{
		Expiration: session.DefaultExpiration,
		Now:        func() time.Time { return later },
	})

	next, _, err := f.svc.Authorize(ctx, st)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
	assert.True(t, next.IsZero())
}

func TestAuthorize_Anonymous(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Authorize(context.Background(), session.State{})
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestAuthorize_Vanished(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	src, err := f.repos.sources.GetByFilesystemID(context.Background(), st.Identity)
	require.NoError(t, err)
	require.NoError(t, f.repos.sources.Delete(context.Background(), src.ID))

	next, _, err := f.svc.Authorize(context.Background(), st)
	assert.ErrorIs(t, err, common.ErrNotRecognized)
	assert.True(t, next.IsZero())
	assert.True(t, f.log.Contains("ERROR", "found no sources when one was expected"))
}

func TestCheckExpirationAndLogout(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)
	ctx := context.Background()

	_, status := f.svc.CheckExpiration(ctx, st)
	assert.Equal(t, session.Active, status)

	assert.True(t, f.svc.Logout(ctx, st).IsZero())
}

func TestSubmit_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, cn, err := f.svc.GenerateCodename(ctx, session.State{})
	require.NoError(t, err)
	_, err = f.svc.CreateSource(ctx, st)
	require.NoError(t, err)

	login, fsid, err := f.svc.ValidateAndLogin(ctx, " "+cn+" ")
	require.NoError(t, err)
	require.True(t, login.LoggedIn())

	res, err := f.svc.Submit(ctx, fsid, "hello", nil)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.IsFirst)
	assert.True(t, res.KeyPending)
	assert.Equal(t, "1-msg.gz.enc", res.Message.Filename)

	res, err = f.svc.Submit(ctx, fsid, "world", nil)
	require.NoError(t, err)
	assert.False(t, res.IsFirst)
	assert.Equal(t, "2-msg.gz.enc", res.Message.Filename)

	assert.Equal(t, []string{fsid, fsid}, f.prov.calls)

	src, err := f.repos.sources.GetByFilesystemID(ctx, fsid)
	require.NoError(t, err)
	assert.False(t, src.Pending)

	rc, err := f.store.Open(ctx, fsid, "2-msg.gz.enc")
	require.NoError(t, err)
	rc.Close()
}

func TestSubmit_WithDocument(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	res, err := f.svc.Submit(context.Background(), st.Identity, "", &submission.File{
		Name: "../../etc/Report Final.pdf",
		Body: strings.NewReader(strings.Repeat("x", 4096)),
	})
	require.NoError(t, err)
	assert.Nil(t, res.Message)
	require.NotNil(t, res.Document)
	assert.Equal(t, models.KindDocument, res.Document.Kind)
	assert.Equal(t, int64(4096), res.Document.Size)
}

func TestSubmit_Nothing(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	_, err := f.svc.Submit(context.Background(), st.Identity, "", nil)
	assert.ErrorIs(t, err, common.ErrNothingToSubmit)
	assert.Empty(t, f.prov.calls)
}

func TestSubmit_KeyPresentSkipsProvisioning(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)

	pub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	require.NoError(t, f.repos.sources.SetPublicKey(context.Background(), st.Identity, pub[:]))

	res, err := f.svc.Submit(context.Background(), st.Identity, "keyed", nil)
	require.NoError(t, err)
	assert.False(t, res.KeyPending)
	assert.Empty(t, f.prov.calls)
}

func TestSubmit_RecordFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	st, _ := f.register(t)
	f.repos.submissions.createErr = errors.New("disk full")

	_, err := f.svc.Submit(context.Background(), st.Identity, "hello", nil)
	require.Error(t, err)

	_, err = f.store.Open(context.Background(), st.Identity, "1-msg.gz.enc")
	assert.Error(t, err)
}

func TestSubmit_UnknownIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), "NOSUCHSOURCE", "hello", nil)
	assert.ErrorIs(t, err, common.ErrNotRecognized)

	_, err = f.svc.Submit(context.Background(), "", "hello", nil)
	assert.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st, _ := f.register(t)
	src, err := f.repos.sources.GetByFilesystemID(ctx, st.Identity)
	require.NoError(t, err)

	for _, name := range []string{"2-reply.gpg", "3-reply.gpg"} {
		a, err := f.store.Create(ctx, st.Identity, name)
		require.NoError(t, err)
		_, err = a.Write([]byte("ciphertext"))
		require.NoError(t, err)
		_, err = a.Commit()
		require.NoError(t, err)
		require.NoError(t, f.repos.replies.Create(ctx, &models.Reply{SourceID: src.ID, Filename: name}))
	}

	n, err := f.svc.DeleteAll(ctx, st.Identity)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.store.Open(ctx, st.Identity, "2-reply.gpg")
	assert.Error(t, err)

	n, err = f.svc.DeleteAll(ctx, st.Identity)
	assert.ErrorIs(t, err, common.ErrNoRepliesFound)
	assert.Zero(t, n)
	assert.Equal(t, 1, f.log.Count("WARN", "found no replies when at least one was expected"))
}

func TestLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st, _ := f.register(t)

	res, err := f.svc.Lookup(ctx, st.Identity)
	require.NoError(t, err)
	assert.False(t, res.HasReplies)
	assert.False(t, res.HasKey)
	assert.Zero(t, res.Submissions)
	assert.Len(t, f.prov.calls, 1)

	_, err = f.svc.Submit(ctx, st.Identity, "hi", nil)
	require.NoError(t, err)
	src, _ := f.repos.sources.GetByFilesystemID(ctx, st.Identity)
	require.NoError(t, f.repos.replies.Create(ctx, &models.Reply{SourceID: src.ID, Filename: "2-reply.gpg"}))

	res, err = f.svc.Lookup(ctx, st.Identity)
	require.NoError(t, err)
	assert.True(t, res.HasReplies)
	assert.Equal(t, int64(1), res.Submissions)
}

func TestJournalistKeyAndMetadata(t *testing.T) {
	f := newFixture(t)

	k := f.svc.JournalistKey()
	require.Len(t, k, 32)
	k[0] ^= 0xff
	assert.NotEqual(t, k, f.svc.JournalistKey())

	assert.NotEmpty(t, f.svc.Metadata().GoVersion)
}
