package keys

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/awnumar/memguard"
	"github.com/dmitrijs2005/deaddrop/internal/common"
	"github.com/dmitrijs2005/deaddrop/internal/filex"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const keyFileSuffix = ".key"

// Generator creates a keypair for an identity and returns its public half.
type Generator interface {
	GenerateKeypair(ctx context.Context, identity string) ([KeySize]byte, error)
}

// Keyring stores private keys sealed with chacha20poly1305 under a key
// derived from the server secret and the identity. One file per identity.
type Keyring struct {
	dir    string
	secret *memguard.Enclave
}

// NewKeyring prepares dir and seals secret into an enclave (the caller's
// copy is wiped).
func NewKeyring(dir string, secret []byte) (*Keyring, error) {
	if len(secret) == 0 {
		return nil, errors.New("keyring secret is empty")
	}
	if err := filex.EnsurePrivateDir(dir); err != nil {
		return nil, err
	}
	return &Keyring{dir: dir, secret: memguard.NewEnclave(secret)}, nil
}

// GenerateKeypair creates a keypair, seals the private key to disk and
// returns the public key.
func (k *Keyring) GenerateKeypair(ctx context.Context, identity string) ([KeySize]byte, error) {
	var pub [KeySize]byte
	if err := ctx.Err(); err != nil {
		return pub, err
	}

	kp, err := GenerateX25519()
	if err != nil {
		return pub, fmt.Errorf("generate keypair: %w", err)
	}
	defer kp.Wipe()

	if err := k.store(identity, kp); err != nil {
		return pub, err
	}
	return kp.Public, nil
}

func (k *Keyring) store(identity string, kp *Keypair) error {
	aead, err := k.aead(identity)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+KeySize+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := aead.Seal(nonce, nonce, kp.Private[:], kp.Public[:])

	blob := append(append([]byte{}, kp.Public[:]...), sealed...)
	if err := filex.WriteFileAtomic(k.dir, identity+keyFileSuffix, blob); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Load unseals the keypair of identity. A missing key returns
// common.ErrorNotFound.
func (k *Keyring) Load(identity string) (*Keypair, error) {
	if err := filex.CheckName(identity + keyFileSuffix); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(filepath.Join(k.dir, identity+keyFileSuffix))
	if errors.Is(err, os.ErrNotExist) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}

	aead, err := k.aead(identity)
	if err != nil {
		return nil, err
	}
	ns := aead.NonceSize()
	if len(blob) < KeySize+ns+aead.Overhead() {
		return nil, fmt.Errorf("key file for identity is truncated")
	}

	kp := &Keypair{}
	copy(kp.Public[:], blob[:KeySize])
	rest := blob[KeySize:]
	priv, err := aead.Open(nil, rest[:ns], rest[ns:], kp.Public[:])
	if err != nil {
		return nil, fmt.Errorf("unseal key: %w", err)
	}
	defer common.WipeByteArray(priv)
	if len(priv) != KeySize {
		return nil, ErrKeySize
	}
	copy(kp.Private[:], priv)

	check, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil || !bytes.Equal(check, kp.Public[:]) {
		kp.Wipe()
		return nil, fmt.Errorf("key file public half does not match private key")
	}
	return kp, nil
}

// Remove deletes the key file of identity. A missing file is not an error.
func (k *Keyring) Remove(identity string) error {
	if err := filex.CheckName(identity + keyFileSuffix); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(k.dir, identity+keyFileSuffix))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (k *Keyring) aead(identity string) (cipher.AEAD, error) {
	lb, err := k.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("open keyring secret: %w", err)
	}
	defer lb.Destroy()

	key := make([]byte, chacha20poly1305.KeySize)
	defer common.WipeByteArray(key)
	r := hkdf.New(sha256.New, lb.Bytes(), nil, []byte("deaddrop-keyring|"+identity))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.New(key)
}
