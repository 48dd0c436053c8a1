// Package identity derives the durable filesystem id of a source from its
// codename using a peppered, memory-hard key derivation function.
package identity

import (
	"context"
	"encoding/base32"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/deaddrop/internal/codename"
	"github.com/dmitrijs2005/deaddrop/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/scrypt"
)

const (
	AlgorithmScrypt   = "scrypt"
	AlgorithmArgon2ID = "argon2id"

	keyLen = 32
)

// Seams for tests; both must behave exactly like their x/crypto counterparts.
var (
	scryptKey   = scrypt.Key
	argon2IDKey = argon2.IDKey
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Params selects the KDF and its cost.
type Params struct {
	Algorithm    string
	ScryptN      int
	ScryptR      int
	ScryptP      int
	ArgonTime    uint32
	ArgonMemory  uint32 // KiB
	ArgonThreads uint8
}

// DefaultParams returns scrypt with N=2^14, r=8, p=1.
func DefaultParams() Params {
	return Params{
		Algorithm:    AlgorithmScrypt,
		ScryptN:      1 << 14,
		ScryptR:      8,
		ScryptP:      1,
		ArgonTime:    3,
		ArgonMemory:  64 * 1024,
		ArgonThreads: 1,
	}
}

// Hasher maps validated codenames to identity tokens.
type Hasher struct {
	pepper *memguard.Enclave
	params Params
	maxLen int
}

// NewHasher seals pepper into an encrypted enclave and wipes the caller's
// copy. An empty pepper yields a Hasher whose Hash always fails.
func NewHasher(pepper []byte, params Params, maxLen int) (*Hasher, error) {
	switch params.Algorithm {
	case "":
		params.Algorithm = AlgorithmScrypt
	case AlgorithmScrypt, AlgorithmArgon2ID:
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", params.Algorithm)
	}

	h := &Hasher{params: params, maxLen: maxLen}
	if len(pepper) > 0 {
		h.pepper = memguard.NewEnclave(pepper)
	}
	return h, nil
}

// Hash returns the identity token for raw. Invalid input is rejected with
// common.ErrInvalidInput before the KDF runs. If the pepper is missing or
// cannot be unsealed the call fails with common.ErrHashUnavailable.
func (h *Hasher) Hash(ctx context.Context, raw string) (string, error) {
	c, err := codename.Validate(raw, h.maxLen)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if h.pepper == nil {
		return "", common.ErrHashUnavailable
	}

	lb, err := h.pepper.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrHashUnavailable, err)
	}
	defer lb.Destroy()

	var sum []byte
	switch h.params.Algorithm {
	case AlgorithmArgon2ID:
		sum = argon2IDKey([]byte(c), lb.Bytes(), h.params.ArgonTime, h.params.ArgonMemory, h.params.ArgonThreads, keyLen)
	default:
		sum, err = scryptKey([]byte(c), lb.Bytes(), h.params.ScryptN, h.params.ScryptR, h.params.ScryptP, keyLen)
		if err != nil {
			return "", fmt.Errorf("%w: %v", common.ErrHashUnavailable, err)
		}
	}
	defer common.WipeByteArray(sum)

	return encoding.EncodeToString(sum), nil
}
