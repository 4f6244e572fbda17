// Package harness drives the real Collection Engine, Registry, and
// Checkpoint Store end-to-end against an in-memory Riot fixture
// (internal/testutil.RiotFixture). Unlike a tautological harness that
// manufactures its own expected completions, every scenario here calls
// engine.Engine.Run and asserts on what the engine actually produced: the
// emitted artifact, the registry rows, and the checkpoint file on disk.
//
// Each scenario gets its own fresh SQLite registry and checkpoint
// directory (t.TempDir()), so scenarios never share state with each other.
package harness
