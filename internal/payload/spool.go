package payload

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/filex"
	"golang.org/x/crypto/chacha20"
)

const copyBufferSize = 32 * 1024

// unlinkEarly removes the spool file right after creation where the OS allows
// it; tests turn it off to inspect the file.
var unlinkEarly = true

// SpooledFile is a Source backed by a temporary file encrypted with an
// ephemeral key that only lives in this process.
type SpooledFile struct {
	f      *os.File
	path   string
	key    []byte
	nonce  []byte
	r      io.Reader
	size   int64
	closed bool
}

func spoolToFile(dir string, r io.Reader) (*SpooledFile, error) {
	if err := filex.EnsurePrivateDir(dir); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "spool-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	s := &SpooledFile{
		f:     f,
		path:  f.Name(),
		key:   make([]byte, chacha20.KeySize),
		nonce: make([]byte, chacha20.NonceSize),
	}
	if unlinkEarly {
		if err := os.Remove(s.path); err == nil {
			s.path = ""
		}
	}

	if err := s.fill(r); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SpooledFile) fill(r io.Reader) error {
	if _, err := rand.Read(s.key); err != nil {
		return err
	}
	if _, err := rand.Read(s.nonce); err != nil {
		return err
	}

	enc, err := chacha20.NewUnauthenticatedCipher(s.key, s.nonce)
	if err != nil {
		return err
	}
	buf := make([]byte, copyBufferSize)
	defer common.WipeByteArray(buf)

	n, err := io.CopyBuffer(cipher.StreamWriter{S: enc, W: s.f}, r, buf)
	if err != nil {
		return fmt.Errorf("spool payload: %w", err)
	}
	s.size = n

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	dec, err := chacha20.NewUnauthenticatedCipher(s.key, s.nonce)
	if err != nil {
		return err
	}
	s.r = cipher.StreamReader{S: dec, R: s.f}
	return nil
}

func (s *SpooledFile) Read(p []byte) (int, error) {
	if s.closed {
		return 0, os.ErrClosed
	}
	return s.r.Read(p)
}

func (s *SpooledFile) Size() int64 { return s.size }

// Path is the on-disk location, empty once the file has been unlinked.
func (s *SpooledFile) Path() string { return s.path }

// Close closes and removes the file and wipes the key. It is idempotent.
func (s *SpooledFile) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	common.WipeByteArray(s.key)
	common.WipeByteArray(s.nonce)

	err := s.f.Close()
	if s.path != "" {
		if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = errors.Join(err, rerr)
		}
		s.path = ""
	}
	return err
}
