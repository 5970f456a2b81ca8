package monitor

import "testing"

func TestClassifyPhase(t *testing.T) {
	cases := []struct {
		name string
		c    TaskCounts
		want Phase
	}{
		{"all pending", TaskCounts{Pending: 3}, PhasePlanning},
		{"mixed in flight", TaskCounts{Pending: 1, InProgress: 1, Completed: 1}, PhaseExecuting},
		{"all completed", TaskCounts{Completed: 3}, PhaseCompleted},
		{"all terminal some failed", TaskCounts{Completed: 1, Failed: 2}, PhaseFixing},
		{"in progress only", TaskCounts{InProgress: 2}, PhaseExecuting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyPhase(tc.c); got != tc.want {
				t.Errorf("classifyPhase(%+v) = %s, want %s", tc.c, got, tc.want)
			}
		})
	}
}

func TestTaskCountsTotal(t *testing.T) {
	c := TaskCounts{Pending: 1, InProgress: 2, Completed: 3, Failed: 4}
	if got := c.Total(); got != 10 {
		t.Errorf("Total() = %d, want 10", got)
	}
}
