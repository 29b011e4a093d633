// Package analytics turns cleaned event records into the dashboard's
// numbers: the filter engine, the daily aggregator and the summary
// calculator with its weakest-link rating.
//
// Every function here is pure. Inputs are never modified and results are
// freshly allocated, so callers may share record slices across goroutines.
package analytics
