// Package cryptox implements the streaming envelope used for stored
// submissions: a random data key wrapped for each recipient with
// nacl/box sealed boxes, followed by chacha20poly1305 chunks.
//
// Layout:
//
//	"DDE1" | n (1 byte) | n × sealed data key (80 bytes) | base nonce (12 bytes)
//	chunk* : uint32 length (high bit marks the final chunk) | ciphertext
//
// Chunk i uses nonce = base nonce XOR i and the final flag as additional data,
// so truncation, reordering and appended data are all detected.
package cryptox

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/box"
)

const (
	ChunkSize = 64 * 1024

	magic         = "DDE1"
	sealedKeySize = chacha20poly1305.KeySize + box.AnonymousOverhead
	finalFlag     = 1 << 31
	maxRecipients = 255
)

var (
	ErrNoRecipients = errors.New("envelope needs at least one recipient")
	ErrBadHeader    = errors.New("malformed envelope header")
	ErrNotRecipient = errors.New("key is not a recipient of this envelope")
	ErrTruncated    = errors.New("envelope is truncated")
	ErrTrailingData = errors.New("data after final envelope chunk")
	ErrCorrupt      = errors.New("envelope chunk failed authentication")
)

// Writer encrypts everything written to it. Close must be called to emit
// the final chunk; it does not close the underlying writer.
type Writer struct {
	w       io.Writer
	aead    cipher.AEAD
	base    [chacha20poly1305.NonceSize]byte
	counter uint64
	buf     []byte
	out     []byte
	n       int64
	closed  bool
	err     error
}

// NewWriter writes the header for recipients and returns a Writer for the body.
func NewWriter(w io.Writer, recipients ...*[32]byte) (*Writer, error) {
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if len(recipients) > maxRecipients {
		return nil, fmt.Errorf("too many recipients: %d", len(recipients))
	}

	dataKey := make([]byte, chacha20poly1305.KeySize)
	defer common.WipeByteArray(dataKey)
	if _, err := rand.Read(dataKey); err != nil {
		return nil, err
	}

	hdr := make([]byte, 0, len(magic)+1+len(recipients)*sealedKeySize+chacha20poly1305.NonceSize)
	hdr = append(hdr, magic...)
	hdr = append(hdr, byte(len(recipients)))
	for _, pub := range recipients {
		var err error
		hdr, err = box.SealAnonymous(hdr, dataKey, pub, rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("seal data key: %w", err)
		}
	}

	ew := &Writer{w: w, buf: make([]byte, 0, ChunkSize)}
	if _, err := rand.Read(ew.base[:]); err != nil {
		return nil, err
	}
	hdr = append(hdr, ew.base[:]...)

	aead, err := chacha20poly1305.New(dataKey)
	if err != nil {
		return nil, err
	}
	ew.aead = aead

	if _, err := w.Write(hdr); err != nil {
		return nil, err
	}
	ew.n = int64(len(hdr))
	return ew, nil
}

func (e *Writer) Write(p []byte) (int, error) {
	if e.closed {
		return 0, errors.New("write to closed envelope")
	}
	if e.err != nil {
		return 0, e.err
	}

	written := 0
	for len(p) > 0 {
		if len(e.buf) == ChunkSize {
			// a full chunk is only known to be non-final once more data arrives
			if err := e.flush(false); err != nil {
				return written, err
			}
		}
		k := copy(e.buf[len(e.buf):ChunkSize], p)
		e.buf = e.buf[:len(e.buf)+k]
		p = p[k:]
		written += k
	}
	return written, nil
}

// Close writes the final chunk.
func (e *Writer) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}
	err := e.flush(true)
	common.WipeByteArray(e.buf[:cap(e.buf)])
	return err
}

// Written is the number of ciphertext bytes emitted so far.
func (e *Writer) Written() int64 { return e.n }

func (e *Writer) flush(final bool) error {
	length := uint32(len(e.buf) + e.aead.Overhead())
	var aad [1]byte
	if final {
		length |= finalFlag
		aad[0] = 1
	}

	nonce := chunkNonce(e.base, e.counter)
	e.counter++

	e.out = binary.BigEndian.AppendUint32(e.out[:0], length)
	e.out = e.aead.Seal(e.out, nonce[:], e.buf, aad[:])
	e.buf = e.buf[:0]

	n, err := e.w.Write(e.out)
	e.n += int64(n)
	if err != nil {
		e.err = err
	}
	return err
}

func chunkNonce(base [chacha20poly1305.NonceSize]byte, counter uint64) [chacha20poly1305.NonceSize]byte {
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], counter)
	for i := range c {
		base[len(base)-8+i] ^= c[i]
	}
	return base
}

// Open reads the envelope header from r and returns a reader of the
// plaintext, using the recipient keypair (pub, priv).
func Open(r io.Reader, pub, priv *[32]byte) (io.Reader, error) {
	pre := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, ErrBadHeader
	}
	if string(pre[:len(magic)]) != magic || pre[len(magic)] == 0 {
		return nil, ErrBadHeader
	}

	slots := make([]byte, int(pre[len(magic)])*sealedKeySize)
	if _, err := io.ReadFull(r, slots); err != nil {
		return nil, ErrBadHeader
	}
	var base [chacha20poly1305.NonceSize]byte
	if _, err := io.ReadFull(r, base[:]); err != nil {
		return nil, ErrBadHeader
	}

	var dataKey []byte
	for off := 0; off < len(slots); off += sealedKeySize {
		if k, ok := box.OpenAnonymous(nil, slots[off:off+sealedKeySize], pub, priv); ok {
			dataKey = k
			break
		}
	}
	if dataKey == nil {
		return nil, ErrNotRecipient
	}
	defer common.WipeByteArray(dataKey)

	aead, err := chacha20poly1305.New(dataKey)
	if err != nil {
		return nil, err
	}
	return &reader{r: r, aead: aead, base: base}, nil
}

type reader struct {
	r       io.Reader
	aead    cipher.AEAD
	base    [chacha20poly1305.NonceSize]byte
	counter uint64
	buf     []byte
	pending []byte
	done    bool
	err     error
}

func (d *reader) Read(p []byte) (int, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.done {
			return 0, io.EOF
		}
		d.err = d.next()
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *reader) next() error {
	var lb [4]byte
	if _, err := io.ReadFull(d.r, lb[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}
	length := binary.BigEndian.Uint32(lb[:])
	final := length&finalFlag != 0
	length &^= finalFlag
	if length < uint32(d.aead.Overhead()) || length > uint32(ChunkSize+d.aead.Overhead()) {
		return ErrCorrupt
	}

	if cap(d.buf) < int(length) {
		d.buf = make([]byte, length)
	}
	ct := d.buf[:length]
	if _, err := io.ReadFull(d.r, ct); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}

	var aad [1]byte
	if final {
		aad[0] = 1
	}
	nonce := chunkNonce(d.base, d.counter)
	d.counter++

	pt, err := d.aead.Open(ct[:0], nonce[:], ct, aad[:])
	if err != nil {
		return ErrCorrupt
	}
	d.pending = pt

	if final {
		d.done = true
		var one [1]byte
		if n, _ := io.ReadFull(d.r, one[:]); n > 0 {
			d.pending = nil
			return ErrTrailingData
		}
	}
	return nil
}
