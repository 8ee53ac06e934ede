// Package dataset holds the in-memory tabular model shared by ingest, the
// scoring engines and the exporters.
//
// A Table is built once and never mutated. Cells are Values that carry a
// string, a float or nothing; numeric coercion happens on read through
// Value.Float so the raw upload survives untouched for previews.
package dataset
