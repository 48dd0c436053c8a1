// Package services contains server-side business logic. This file implements
// SourceService, the set of operations the source-facing transport calls:
// codename generation, source creation, login, submission and reply deletion.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/deaddrop/internal/buildinfo"
	"github.com/dmitrijs2005/deaddrop/internal/codename"
	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/dbx"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/dmitrijs2005/deaddrop/internal/server/provisioner"
	"github.com/dmitrijs2005/deaddrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/deaddrop/internal/server/session"
	"github.com/dmitrijs2005/deaddrop/internal/server/storage"
	"github.com/dmitrijs2005/deaddrop/internal/server/submission"
)

// Hasher derives the identity token of a codename.
type Hasher interface {
	Hash(ctx context.Context, raw string) (string, error)
}

// KeyProvisioner starts keypair generation for sources that lack one.
type KeyProvisioner interface {
	ProvisionIfNeeded(ctx context.Context, src *models.Source) provisioner.Decision
}

// Deps groups the collaborators of SourceService.
type Deps struct {
	Codenames   *codename.Generator
	Hasher      Hasher
	Store       storage.Store
	Provisioner KeyProvisioner
	Packaging   submission.Options
	Policy      session.Policy
}

// SubmissionResult is what a source learns about a stored submission.
type SubmissionResult struct {
	IsFirst    bool
	OK         bool
	Message    *models.Submission
	Document   *models.Submission
	KeyPending bool
}

// LookupResult summarises a logged-in source's state.
type LookupResult struct {
	JournalistDesignation string
	HasReplies            bool
	HasKey                bool
	Submissions           int64
}

type SourceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codenames   *codename.Generator
	hasher      Hasher
	store       storage.Store
	provisioner KeyProvisioner
	packager    *submission.Packager
	policy      session.Policy
	journalist  []byte
	log         logging.Logger
}

func NewSourceService(db *sql.DB, m repomanager.RepositoryManager, deps Deps, log logging.Logger) *SourceService {
	s := &SourceService{
		db:          db,
		repomanager: m,
		codenames:   deps.Codenames,
		hasher:      deps.Hasher,
		store:       deps.Store,
		provisioner: deps.Provisioner,
		policy:      deps.Policy,
		journalist:  append([]byte(nil), deps.Packaging.JournalistKey...),
		log:         log.With("module", "sources"),
	}
	s.packager = submission.NewPackager(deps.Store, &recorder{s: s}, deps.Packaging, log)
	return s
}

func (s *SourceService) sessionPolicy(ctx context.Context) session.Policy {
	return session.PolicyFrom(ctx, s.policy)
}

// GenerateCodename puts a fresh codename into the session. Logged-in sessions
// are refused with common.ErrAlreadyLoggedIn.
func (s *SourceService) GenerateCodename(ctx context.Context, st session.State) (session.State, string, error) {
	policy := s.sessionPolicy(ctx)
	if st.LoggedIn() {
		if cur, status := policy.Check(st); status == session.Active {
			return cur, "", common.ErrAlreadyLoggedIn
		}
	}

	cn, err := s.codenames.Generate(ctx)
	if err != nil {
		return session.State{}, "", err
	}
	return policy.Generate(cn), cn, nil
}

// CreateSource registers the codename held in st. A codename that already
// belongs to a source yields common.ErrDuplicateCodename and is dropped from
// the returned state.
func (s *SourceService) CreateSource(ctx context.Context, st session.State) (session.State, error) {
	policy := s.sessionPolicy(ctx)
	if st.LoggedIn() {
		return st, common.ErrAlreadyLoggedIn
	}
	if st.Codename == "" {
		return session.State{}, common.ErrNotLoggedIn
	}

	fsid, err := s.hasher.Hash(ctx, st.Codename)
	if err != nil {
		return session.State{}, err
	}
	designation, err := s.codenames.Designation()
	if err != nil {
		return st, err
	}

	src := &models.Source{FilesystemID: fsid, JournalistDesignation: designation}
	if _, err := s.repomanager.Sources(s.db).Create(ctx, src); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			s.log.Error(ctx, "attempt to create a source with duplicate codename", "error", err)
			st.Codename = ""
			return st, common.ErrDuplicateCodename
		}
		return st, fmt.Errorf("error creating source: %w", err)
	}

	return policy.Authenticate(fsid), nil
}

// ValidateAndLogin checks raw and resolves it to a source identity.
// Malformed input is rejected before hashing with common.ErrInvalidInput;
// an unknown codename yields common.ErrNotRecognized.
func (s *SourceService) ValidateAndLogin(ctx context.Context, raw string) (session.State, string, error) {
	if _, err := codename.Validate(raw, s.codenames.MaxLen()); err != nil {
		return session.State{}, "", err
	}

	fsid, err := s.hasher.Hash(ctx, raw)
	if err != nil {
		return session.State{}, "", err
	}

	if _, err := s.repomanager.Sources(s.db).GetByFilesystemID(ctx, fsid); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return session.State{}, "", common.ErrNotRecognized
		}
		return session.State{}, "", fmt.Errorf("error searching source: %w", err)
	}

	return s.sessionPolicy(ctx).Authenticate(fsid), fsid, nil
}

// Authorize applies expiration to st and loads the bound source.
func (s *SourceService) Authorize(ctx context.Context, st session.State) (session.State, *models.Source, error) {
	policy := s.sessionPolicy(ctx)

	next, status := policy.Check(st)
	switch {
	case status == session.Expired:
		return next, nil, common.ErrSessionExpired
	case !next.LoggedIn():
		return next, nil, common.ErrNotLoggedIn
	}

	src, err := s.repomanager.Sources(s.db).GetByFilesystemID(ctx, next.Identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "found no sources when one was expected")
			return policy.Vanished(next), nil, common.ErrNotRecognized
		}
		return next, nil, fmt.Errorf("error searching source: %w", err)
	}
	return next, src, nil
}

// CheckExpiration reports the session status without touching storage.
func (s *SourceService) CheckExpiration(ctx context.Context, st session.State) (session.State, session.Status) {
	return s.sessionPolicy(ctx).Check(st)
}

func (s *SourceService) Logout(ctx context.Context, st session.State) session.State {
	return s.sessionPolicy(ctx).Logout(st)
}

// Lookup returns what the source's landing view needs.
func (s *SourceService) Lookup(ctx context.Context, identity string) (*LookupResult, error) {
	src, err := s.source(ctx, identity)
	if err != nil {
		return nil, err
	}

	replies, err := s.repomanager.Replies(s.db).CountBySource(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("error counting replies: %w", err)
	}
	subs, err := s.repomanager.Submissions(s.db).CountBySource(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("error counting submissions: %w", err)
	}

	if !src.HasKey() {
		s.provisioner.ProvisionIfNeeded(ctx, src)
	}

	return &LookupResult{
		JournalistDesignation: src.JournalistDesignation,
		HasReplies:            replies > 0,
		HasKey:                src.HasKey(),
		Submissions:           subs,
	}, nil
}

// Submit packages message and file for the source behind identity. Sources
// without a keypair get one scheduled; a deferral is retried on the next
// submission.
func (s *SourceService) Submit(ctx context.Context, identity, message string, file *submission.File) (*SubmissionResult, error) {
	src, err := s.source(ctx, identity)
	if err != nil {
		return nil, err
	}

	res, err := s.packager.Package(ctx, src, message, file)
	if err != nil {
		return nil, err
	}

	if !src.HasKey() {
		d := s.provisioner.ProvisionIfNeeded(ctx, src)
		s.log.Debug(ctx, "keypair provisioning decision", "decision", d.String())
	}

	if err := s.repomanager.Sources(s.db).MarkActive(ctx, src.ID); err != nil {
		s.log.Warn(ctx, "couldn't mark source active", "error", err)
	}

	return &SubmissionResult{
		IsFirst:    res.IsFirst,
		OK:         true,
		Message:    res.Message,
		Document:   res.Document,
		KeyPending: res.KeyPending,
	}, nil
}

// DeleteAll removes every reply to the source and returns how many went.
func (s *SourceService) DeleteAll(ctx context.Context, identity string) (int, error) {
	src, err := s.source(ctx, identity)
	if err != nil {
		return 0, err
	}

	replies, err := s.repomanager.Replies(s.db).ListBySource(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("error listing replies: %w", err)
	}
	if len(replies) == 0 {
		s.log.Warn(ctx, "found no replies when at least one was expected")
		return 0, common.ErrNoRepliesFound
	}

	for _, r := range replies {
		if err := s.store.Remove(ctx, src.FilesystemID, r.Filename); err != nil {
			return 0, fmt.Errorf("error removing reply: %w", err)
		}
	}

	n, err := s.repomanager.Replies(s.db).DeleteBySource(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("error deleting replies: %w", err)
	}
	return int(n), nil
}

// JournalistKey returns the public key submissions are encrypted to.
func (s *SourceService) JournalistKey() []byte {
	return append([]byte(nil), s.journalist...)
}

func (s *SourceService) Metadata() buildinfo.Info {
	return buildinfo.Get()
}

func (s *SourceService) source(ctx context.Context, identity string) (*models.Source, error) {
	if identity == "" {
		return nil, common.ErrNotLoggedIn
	}
	src, err := s.repomanager.Sources(s.db).GetByFilesystemID(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "found no sources when one was expected")
			return nil, common.ErrNotRecognized
		}
		return nil, fmt.Errorf("error searching source: %w", err)
	}
	return src, nil
}

// recorder adapts the repositories to submission.Recorder.
type recorder struct {
	s *SourceService
}

func (r *recorder) NextInteraction(ctx context.Context, sourceID string) (int64, error) {
	return r.s.repomanager.Sources(r.s.db).IncrementInteractionCount(ctx, sourceID)
}

func (r *recorder) RecordSubmissions(ctx context.Context, subs []*models.Submission) error {
	return dbx.WithTx(ctx, r.s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.s.repomanager.Submissions(tx)
		for _, sub := range subs {
			if err := repo.Create(ctx, sub); err != nil {
				return err
			}
		}
		return nil
	})
}
