// Package regress is the numeric regression runtime used by the trainer and the
// forecast engine: L2-regularized linear regression on standardized inputs and
// histogram-based gradient-boosted regression trees.
//
// Whether the runtime may be used is decided once per process by Detect and passed
// around as a Capability value; callers take a single baseline-only path when it is
// unavailable.
package regress
