// Package sqlite persists pipeline runs and their measurements.
//
// The schema is owned by the embedded migrations under migrations/ and
// applied with golang-migrate. Stores take a *sql.DB so tests can open
// an in-memory database.
package sqlite
