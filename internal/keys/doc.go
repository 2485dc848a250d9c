// Package keys manages the passphrase of the encrypted store.
//
// The passphrase is 32 random bytes generated once per install. It is
// never written to disk in the clear: a wrapping key held in a secure
// store (the OS keyring in production) seals it with AES-256-GCM, and
// only the sealed bytes and the nonce are persisted, base64-encoded, in
// the preferences file under "encryptedKey" and "keyIv".
//
// Losing the wrapping key while the record still exists is fatal for the
// store it protects. The Manager never papers over that by generating a
// new passphrase; it returns ErrWrappingKeyLost.
package keys
