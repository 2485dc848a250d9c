// Package health defines the records persisted by the local store.
//
// A Measurement is one glucose reading or one activity session. It is
// immutable once inserted: the store assigns its ID and the only way to
// change it is to delete it. A FoodReference is one entry of the static
// food guide, keyed by a stable string ID supplied by the catalog asset.
//
// This package imports nothing internal; every other package builds on it.
package health
