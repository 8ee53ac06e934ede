// Package shared holds code used across layers that belongs to no single
// domain package.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//   - a capturing slog handler so tests can assert on log records
//   - sample MaxDiff, ComStrat and MOCA datasets as CSV text
//   - helpers that write those datasets to CSV or xlsx files
//
// Example usage:
//
//	func TestUpload(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    path := testutil.WriteFile(t, t.TempDir(), "moca.csv", testutil.MocaCSV)
//	    // ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
