// Package exitcode centralizes the three process exit codes: success,
// resumable interruption, and fatal failure. Every command in internal/cli
// resolves its exit status through this package rather than hand-picking
// os.Exit arguments at each call site.
package exitcode

// Success means the cycle (or stage run) completed with no resumable or
// fatal condition.
const Success = 0

// Resumable means the run stopped short of completion but left a valid
// checkpoint behind. A subsequent invocation with the same cycleId picks
// up where this one left off.
const Resumable = 2

// Fatal is any other non-zero exit: a configuration error, an invariant
// violation at emit, or an error with no resumable state attached.
const Fatal = 1
