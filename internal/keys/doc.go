// Package keys owns the per-source keypair: X25519 generation, the sealed
// on-disk keyring for private keys and the system entropy estimate that gates
// when generation may run.
package keys
