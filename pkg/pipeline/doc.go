// Package pipeline runs the ordered provisioning sequence with fail-fast
// semantics, recording every step outcome in the journal. Steps that can
// detect their own prior completion implement Checker and are skipped with a
// note instead of re-run.
package pipeline
