package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	for _, size := range []float64{0, -1} {
		if s := NewProgressSampler(size); s.bucket != 5 || s.emitted != -1 {
			t.Fatalf("NewProgressSampler(%v) = %+v", size, s)
		}
	}
}

func TestProgressSamplerNilLogsEverything(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(1, 100) {
		t.Fatal("nil sampler should always log")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		done, total int
		want        bool
	}{
		{0, 8, false},
		{1, 8, true},  // 12.5%, bucket 0
		{2, 8, true},  // 25%, bucket 1
		{3, 8, false}, // 37.5%
		{4, 8, true},  // 50%
		{5, 8, false},
		{6, 8, true},  // 75%
		{7, 8, false},
		{8, 8, true},
		{9, 8, true},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.done, step.total); got != step.want {
			t.Fatalf("step %d (%d/%d): ShouldLog = %v, want %v", i, step.done, step.total, got, step.want)
		}
	}
}

func TestProgressSamplerIgnoresEmptyTotals(t *testing.T) {
	if NewProgressSampler(10).ShouldLog(3, 0) {
		t.Fatal("zero total should never log")
	}
}
