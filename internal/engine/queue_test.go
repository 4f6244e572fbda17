package engine

import "testing"

func TestWorkQueue_FIFO(t *testing.T) {
	q := newWorkQueue()
	q.Enqueue(WorkItem{Kind: WorkMatch, MatchID: "NA1_1"})
	q.Enqueue(WorkItem{Kind: WorkMatch, MatchID: "NA1_2"})

	first, ok := q.TryDequeue()
	if !ok || first.MatchID != "NA1_1" {
		t.Errorf("first dequeue = %+v ok=%v, want NA1_1", first, ok)
	}
	second, ok := q.TryDequeue()
	if !ok || second.MatchID != "NA1_2" {
		t.Errorf("second dequeue = %+v ok=%v, want NA1_2", second, ok)
	}
	if _, ok := q.TryDequeue(); ok {
		t.Error("expected an empty queue to report no item")
	}
}

func TestWorkQueue_EnqueueAfterCloseRejected(t *testing.T) {
	q := newWorkQueue()
	q.Close()
	if q.Enqueue(WorkItem{Kind: WorkMatch, MatchID: "NA1_1"}) {
		t.Error("Enqueue() after Close() should return false")
	}
	if !q.IsClosed() {
		t.Error("IsClosed() = false after Close()")
	}
}

func TestCheckpointTrigger_FiresEveryInterval(t *testing.T) {
	trig := NewCheckpointTrigger(3)

	fired := 0
	for i := 0; i < 9; i++ {
		if trig.Check() {
			fired++
		}
	}
	if fired != 3 {
		t.Errorf("fired %d times over 9 checks at interval 3, want 3", fired)
	}
	if trig.Current() != 0 {
		t.Errorf("Current() = %d, want 0 right after a firing", trig.Current())
	}
}

func TestCheckpointTrigger_DisabledAtZeroInterval(t *testing.T) {
	trig := NewCheckpointTrigger(0)
	for i := 0; i < 100; i++ {
		if trig.Check() {
			t.Fatal("a zero-interval trigger must never fire")
		}
	}
}
