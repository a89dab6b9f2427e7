// Package storage provides the key/value store the client persists its
// credentials in. It plays the role browser local storage plays for the web
// dashboard: string keys, opaque values, no cross-process notifications.
//
// Implementations:
//   - SQLite: durable store in a single-table SQLite database, migrated with
//     goose on open.
//   - Memory: process-local map, used for ephemeral sessions and tests.
//   - Sealed: wraps another Storage and AES-GCM seals every value with a
//     passphrase-derived key.
//
// Get reports a missing key with common.ErrNotFound so callers can tell
// "absent" from "broken".
package storage
