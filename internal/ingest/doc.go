// Package ingest turns uploaded .xlsx, .xls and .csv files into dataset
// tables. Cells stay text; numeric coercion is left to the scoring validator.
package ingest
