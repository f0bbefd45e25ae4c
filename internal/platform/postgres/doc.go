// Package postgres implements the store interfaces on PostgreSQL, accessed
// through database/sql over the pgx stdlib driver.
//
// Hydration happens here: rows are mapped to the canonical domain shapes and
// validated before they reach the scheduler, so corrupted values fail loudly
// at the storage boundary. Card writes use a version column for
// compare-and-set; review logs and parameter vectors are append-only.
package postgres
