// Package scoring implements the three market-research engines.
//
// RunMaxDiff turns best/worst choices into utility scores and a
// Top/Middle/Bottom tercile split. RunComStrat maps attributes into
// importance-by-advantage quadrants and, when a price column is named, draws
// a price/value map. MocaEngine fits a least-squares fair-value line of value
// on price and sorts entities into four consistency zones.
//
// Every engine validates its input table, computes a result table, builds
// chart.Figure descriptions and a set of insight strings. Engines hold no
// mutable state and are safe for concurrent use. Degraded paths (placeholder
// charts, the Indeterminate fallback, dropped rows) are reported through an
// optional Observer rather than logged, so the package has no logger.
package scoring
