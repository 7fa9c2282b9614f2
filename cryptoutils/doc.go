// Package cryptoutils protects SIP credentials at rest.
//
// PassphraseSealer derives a 256-bit key from an operator passphrase with
// Argon2id and seals each value with XChaCha20-Poly1305 under a random
// nonce. Sealed values are stored as
//
//	sealed:v1:<base64(nonce || ciphertext)>
//
// so sealed and plaintext values can coexist in one snapshot: Open returns
// unprefixed values unchanged, which lets an existing plaintext registry be
// migrated by setting a passphrase and rewriting it. PassphraseSealer seals
// every non-empty value, including ones that already start with the prefix.
//
// PlaintextSealer is used when no passphrase is configured. It refuses to
// open sealed values, so a sealed snapshot cannot be served silently without
// its passphrase. For the same reason it refuses to store plaintext values
// that start with the prefix.
package cryptoutils
