package orchestrator

import (
	"os"
	"time"
)

// shouldSkip reports whether a stage's outputs already exist and are all
// newer than its inputs. A missing output always forces a run; a missing
// input is ignored (the predecessor stage may not have declared a file the
// orchestrator otherwise synthesizes, e.g. a config key).
func shouldSkip(contract Contract) (skip bool, cause string) {
	if len(contract.Outputs) == 0 {
		return false, ""
	}

	var oldestOutput time.Time
	for i, out := range contract.Outputs {
		info, err := os.Stat(out)
		if err != nil {
			return false, ""
		}
		if i == 0 || info.ModTime().Before(oldestOutput) {
			oldestOutput = info.ModTime()
		}
	}

	for _, in := range contract.Inputs {
		info, err := os.Stat(in)
		if err != nil {
			continue
		}
		if info.ModTime().After(oldestOutput) {
			return false, ""
		}
	}

	return true, "all outputs exist and are newer than all inputs"
}

// verifyOutputs checks that every output a stage declared actually exists
// after it ran; a declared output missing after completion fails the DAG.
func verifyOutputs(contract Contract) error {
	for _, out := range contract.Outputs {
		if _, err := os.Stat(out); err != nil {
			return &MissingOutputError{Path: out}
		}
	}
	return nil
}

// MissingOutputError reports a stage that completed without producing a
// declared output.
type MissingOutputError struct {
	Path string
}

func (e *MissingOutputError) Error() string {
	return "orchestrator: declared output missing after stage completion: " + e.Path
}
