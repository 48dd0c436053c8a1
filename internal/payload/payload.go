// Package payload abstracts submission bodies as readable byte sources that
// are either held in memory or spooled to an encrypted temporary file.
package payload

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/deaddrop/internal/common"
)

// DefaultThreshold is the largest payload kept in memory.
const DefaultThreshold = 512 * 1024

// Source is a readable payload. Close releases and erases whatever backs it
// and must be called on every path.
type Source interface {
	io.Reader
	io.Closer
	// Size is the payload length, or -1 if unknown.
	Size() int64
}

// Memory is a Source over an in-memory buffer.
type Memory struct {
	buf []byte
	r   *bytes.Reader
}

// NewMemory wraps b without copying; Close wipes it.
func NewMemory(b []byte) *Memory {
	return &Memory{buf: b, r: bytes.NewReader(b)}
}

func (m *Memory) Read(p []byte) (int, error) { return m.r.Read(p) }

func (m *Memory) Size() int64 { return int64(len(m.buf)) }

func (m *Memory) Close() error {
	common.WipeByteArray(m.buf)
	m.r.Reset(nil)
	return nil
}

// Spool reads r and returns a Memory source if it fits in threshold bytes and
// a SpooledFile in dir otherwise. Memory use is bounded by threshold.
func Spool(ctx context.Context, r io.Reader, threshold int64, dir string) (Source, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	r = &ctxReader{ctx: ctx, r: r}

	head, err := readHead(r, threshold+1)
	switch {
	case errors.Is(err, io.EOF):
		return NewMemory(head), nil
	case err != nil:
		common.WipeByteArray(head)
		return nil, err
	}

	defer common.WipeByteArray(head)
	return spoolToFile(dir, io.MultiReader(bytes.NewReader(head), r))
}

// initialHeadSize is the first buffer readHead allocates.
const initialHeadSize = 32 * 1024

// readHead reads up to limit bytes from r, growing its buffer as data
// arrives so small payloads stay small. Outgrown buffers are wiped. It
// returns io.EOF when r ended before limit.
func readHead(r io.Reader, limit int64) ([]byte, error) {
	buf := make([]byte, 0, min(limit, initialHeadSize))
	for int64(len(buf)) < limit {
		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), min(limit, 2*int64(cap(buf))))
			copy(grown, buf)
			common.WipeByteArray(buf)
			buf = grown
		}
		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if errors.Is(err, io.EOF) {
			return buf, io.EOF
		}
		if err != nil {
			return buf, err
		}
	}
	return buf, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
