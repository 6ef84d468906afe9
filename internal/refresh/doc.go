// Package refresh implements the refresh-and-verify pipeline: the
// timestamp rewriter, retry policy, batch runner, cycle scheduler, and
// statistics aggregator, plus the types they share.
package refresh
