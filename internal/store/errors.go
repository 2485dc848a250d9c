package store

import "errors"

var (
	// ErrStorageUnavailable marks an unrecoverable storage failure. The
	// app must stop writing and tell the user; the remedy is Reset, which
	// loses the data.
	ErrStorageUnavailable = errors.New("store: persistence unavailable")

	// ErrWrongPassphrase means the key check in store_meta did not open.
	ErrWrongPassphrase = errors.New("store: passphrase does not open this database")

	// ErrOrphanedStore means an encrypted database exists but its key
	// record is gone. A new passphrase would never open it, so none is made.
	ErrOrphanedStore = errors.New("store: encrypted database has no key record")

	// ErrLegacyStore means the file predates encryption. The provider
	// deletes such files before opening.
	ErrLegacyStore = errors.New("store: database predates encryption")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidMeasurement wraps caller-contract violations on insert.
	ErrInvalidMeasurement = errors.New("store: invalid measurement")

	// ErrCorruptRow means a stored payload failed to open or decode.
	ErrCorruptRow = errors.New("store: corrupt row")
)
