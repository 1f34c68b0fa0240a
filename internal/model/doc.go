// Package model defines the core data types shared across webtrail:
// history items, visit details, and category records.
//
// All timestamps are stored as Unix epoch milliseconds because that is the
// unit emitted by browser history providers. Conversion helpers to and from
// time.Time live here so no other package reimplements the math.
//
// Design decision: This package has no dependencies on other webtrail
// packages. Types defined here flow through every layer (ingestion,
// persistence, classification, analytics), so keeping the package at the
// bottom of the dependency graph avoids import cycles.
package model
