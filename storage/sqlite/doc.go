// Package sqlite implements storage.RecordStore on an embedded SQLite
// database using the pure-Go modernc.org/sqlite driver. Schema
// migrations are embedded in the binary and applied on open.
package sqlite
