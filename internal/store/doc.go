// Package store is the encrypted local database of the app.
//
// It keeps two tables in one SQLite file:
//   - health_logs: append-mostly glucose and activity measurements
//   - food_items: the static food guide, bulk-loaded from the bundled catalog
//
// # Encryption
//
// The SQLite driver has no page cipher, so sensitive columns are sealed
// before they reach the driver. The 32-byte passphrase from the key
// manager is stretched with HKDF-SHA256 (per-store random salt) into
// independent subkeys:
//   - key_check: seals a fixed canary in store_meta; a wrong passphrase
//     fails here, before any data is read
//   - health_logs: seals value, display text and annotation with
//     XChaCha20-Poly1305; kind and recorded_at are the associated data
//
// kind and recorded_at stay in clear so the two live queries can use
// indexes. food_items is public reference data and is stored in clear.
//
// # Schema evolution
//
// Any mismatch between SchemaVersion and PRAGMA user_version drops and
// recreates every data table. store_meta survives so the passphrase check
// still guards the file. This loses logged history on every schema bump;
// it is a product decision, not a technical limit.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: a single writer, no SQLITE_BUSY between our own goroutines
package store
