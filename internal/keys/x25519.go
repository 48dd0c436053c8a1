package keys

import (
	"crypto/rand"
	"errors"

	"github.com/dmitrijs2005/deaddrop/internal/common"
	"golang.org/x/crypto/curve25519"
)

const KeySize = 32

var ErrKeySize = errors.New("bad key size")

// Keypair is an X25519 key pair.
type Keypair struct {
	Public  [KeySize]byte
	Private [KeySize]byte
}

// GenerateX25519 returns a fresh key pair with the private key clamped per RFC 7748.
func GenerateX25519() (*Keypair, error) {
	kp := &Keypair{}
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return nil, err
	}
	kp.Private[0] &= 248
	kp.Private[31] &= 127
	kp.Private[31] |= 64

	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		kp.Wipe()
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// PublicFromBytes converts a stored public key.
func PublicFromBytes(b []byte) (*[KeySize]byte, error) {
	if len(b) != KeySize {
		return nil, ErrKeySize
	}
	var k [KeySize]byte
	copy(k[:], b)
	return &k, nil
}

// Wipe zeroes the private half.
func (k *Keypair) Wipe() {
	common.WipeByteArray(k.Private[:])
}
