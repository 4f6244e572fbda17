package harness

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nysm-labs/tft-curator/internal/checkpoint"
	"github.com/nysm-labs/tft-curator/internal/engine"
	"github.com/nysm-labs/tft-curator/internal/registry"
	"github.com/nysm-labs/tft-curator/internal/testutil"
)

// Rig bundles one scenario's fresh collaborators: an in-memory Riot
// fixture the test populates, a throwaway SQLite registry, a throwaway
// checkpoint directory, and a clock the scenario can advance.
type Rig struct {
	Fixture    *testutil.RiotFixture
	Registry   *registry.Store
	Checkpoint *checkpoint.Store
	Clock      *testutil.FixedClock
	DataRoot   string
}

// NewRig builds a fresh Rig rooted at t.TempDir(), starting the clock at
// start. Each call gets its own registry file and checkpoint directory so
// scenarios never observe each other's state.
func NewRig(t *testing.T, start time.Time) *Rig {
	t.Helper()

	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("harness: registry.Open() failed: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	cp, err := checkpoint.NewStore(filepath.Join(dir, "checkpoints"))
	if err != nil {
		t.Fatalf("harness: checkpoint.NewStore() failed: %v", err)
	}

	return &Rig{
		Fixture: testutil.NewRiotFixture(),
		Registry: reg,
		Checkpoint: cp,
		Clock: testutil.NewFixedClock(start),
		DataRoot: filepath.Join(dir, "data"),
	}
}

// NewEngine builds an Engine wired to the rig's collaborators, against
// whichever fixture is passed (not necessarily r.Fixture — the
// auth-expiry scenario swaps in a second fixture for the resumed run,
// sharing the same registry and checkpoint store).
func (r *Rig) NewEngine(fixture engine.RiotClient, cfg engine.Config) *engine.Engine {
	cfg.DataRoot = r.DataRoot
	return engine.New(fixture, r.Registry, r.Checkpoint, r.Clock, cfg, nil)
}
