// Package submission turns a source's message and document into compressed,
// encrypted artifacts in the store and records their metadata.
package submission

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/cryptox"
	"github.com/dmitrijs2005/deaddrop/internal/keys"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
	"github.com/dmitrijs2005/deaddrop/internal/payload"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/dmitrijs2005/deaddrop/internal/server/storage"
	"github.com/google/uuid"
)

// MessageArchiveName is the name embedded in the gzip header of messages.
const MessageArchiveName = "message"

// Recorder is the persistence the packager needs.
type Recorder interface {
	// NextInteraction increments and returns the source's interaction counter.
	NextInteraction(ctx context.Context, sourceID string) (int64, error)
	// RecordSubmissions stores all rows of one submission atomically.
	RecordSubmissions(ctx context.Context, subs []*models.Submission) error
}

// File is an uploaded document with its untrusted name.
type File struct {
	Name string
	Body io.Reader
}

// Result describes a stored submission.
type Result struct {
	// IsFirst is true when the source had no interactions before this one.
	IsFirst    bool
	Message    *models.Submission
	Document   *models.Submission
	KeyPending bool
}

type Options struct {
	SpoolThreshold int64
	SpoolDir       string
	// JournalistKey is the X25519 public key every artifact is encrypted to.
	JournalistKey []byte
}

// Packager writes submissions. It holds no per-source state.
type Packager struct {
	store     storage.Store
	rec       Recorder
	recipient *[keys.KeySize]byte
	threshold int64
	spoolDir  string
	log       logging.Logger
	now       func() time.Time
}

func NewPackager(store storage.Store, rec Recorder, opts Options, log logging.Logger) *Packager {
	p := &Packager{
		store:     store,
		rec:       rec,
		threshold: opts.SpoolThreshold,
		spoolDir:  opts.SpoolDir,
		log:       log.With("module", "submission"),
		now:       time.Now,
	}
	if k, err := keys.PublicFromBytes(opts.JournalistKey); err == nil {
		p.recipient = k
	}
	return p
}

type part struct {
	kind    string
	archive string
	orig    string
	src     payload.Source
}

// Package stores message and/or file for src. At least one must be non-empty,
// otherwise common.ErrNothingToSubmit is returned. Artifacts are encrypted to
// the journalist key and to the source key when one exists.
func (p *Packager) Package(ctx context.Context, src *models.Source, message string, file *File) (*Result, error) {
	if p.recipient == nil {
		return nil, common.ErrNoRecipient
	}

	parts, err := p.spool(ctx, message, file)
	defer func() {
		for _, pt := range parts {
			pt.src.Close()
		}
	}()
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, common.ErrNothingToSubmit
	}

	recipients := []*[keys.KeySize]byte{p.recipient}
	res := &Result{}
	if src.HasKey() {
		k, err := keys.PublicFromBytes(src.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("source public key: %w", err)
		}
		recipients = append(recipients, k)
	} else {
		res.KeyPending = true
	}

	var subs []*models.Submission
	var written []string
	rollback := func() {
		for _, name := range written {
			if err := p.store.Remove(context.WithoutCancel(ctx), src.FilesystemID, name); err != nil {
				p.log.Error(ctx, "couldn't remove artifact of failed submission", "error", err)
			}
		}
	}

	for i, pt := range parts {
		sub, n, err := p.write(ctx, src, pt, recipients)
		if err != nil {
			rollback()
			return nil, err
		}
		// Only one submission can observe counter 1.
		if i == 0 {
			res.IsFirst = n == 1
		}
		written = append(written, sub.Filename)
		subs = append(subs, sub)
		if pt.kind == models.KindMessage {
			res.Message = sub
		} else {
			res.Document = sub
		}
	}

	if err := p.rec.RecordSubmissions(ctx, subs); err != nil {
		rollback()
		return nil, err
	}

	if err := p.store.Normalize(ctx, src.FilesystemID); err != nil {
		p.log.Warn(ctx, "couldn't normalize submission timestamps", "error", err)
	}
	return res, nil
}

func (p *Packager) spool(ctx context.Context, message string, file *File) ([]part, error) {
	var parts []part

	if message != "" {
		s, err := payload.Spool(ctx, strings.NewReader(message), p.threshold, p.spoolDir)
		if err != nil {
			return parts, fmt.Errorf("spool message: %w", err)
		}
		parts = append(parts, part{kind: models.KindMessage, archive: MessageArchiveName, src: s})
	}

	if file != nil && file.Body != nil {
		s, err := payload.Spool(ctx, file.Body, p.threshold, p.spoolDir)
		if err != nil {
			return parts, fmt.Errorf("spool document: %w", err)
		}
		if s.Size() == 0 {
			s.Close()
			return parts, nil
		}
		name := SanitizeFilename(file.Name)
		parts = append(parts, part{kind: models.KindDocument, archive: name, orig: name, src: s})
	}
	return parts, nil
}

func (p *Packager) write(ctx context.Context, src *models.Source, pt part, recipients []*[keys.KeySize]byte) (*models.Submission, int64, error) {
	n, err := p.rec.NextInteraction(ctx, src.ID)
	if err != nil {
		return nil, 0, err
	}
	name := fmt.Sprintf("%d-%s.gz.enc", n, pt.kind)

	art, err := p.store.Create(ctx, src.FilesystemID, name)
	if err != nil {
		return nil, 0, fmt.Errorf("create artifact: %w", err)
	}
	size, err := seal(art, pt, recipients)
	if err != nil {
		art.Abort()
		return nil, 0, err
	}
	stored, err := art.Commit()
	if err != nil {
		return nil, 0, fmt.Errorf("commit artifact: %w", err)
	}

	return &models.Submission{
		ID:           uuid.NewString(),
		SourceID:     src.ID,
		Filename:     name,
		Kind:         pt.kind,
		OriginalName: pt.orig,
		Size:         size,
		StoredSize:   stored,
		CreatedAt:    p.now().UTC(),
	}, n, nil
}

// seal streams pt through gzip and the envelope into w and returns the
// plaintext length.
func seal(w io.Writer, pt part, recipients []*[keys.KeySize]byte) (int64, error) {
	env, err := cryptox.NewWriter(w, recipients...)
	if err != nil {
		return 0, fmt.Errorf("envelope: %w", err)
	}
	gz := gzip.NewWriter(env)
	gz.Name = pt.archive

	n, err := io.Copy(gz, pt.src)
	if err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := errors.Join(gz.Close(), env.Close()); err != nil {
		return 0, fmt.Errorf("finish artifact: %w", err)
	}
	return n, nil
}
