package logging

// ProgressSampler thins "n of total" progress records down to one per
// percentage bucket. The first and the final item are always reported.
type ProgressSampler struct {
	bucket  float64
	emitted int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent. Non-positive widths fall back to 5.
func NewProgressSampler(bucket float64) *ProgressSampler {
	if bucket <= 0 {
		bucket = 5
	}
	return &ProgressSampler{bucket: bucket, emitted: -1}
}

// ShouldLog reports whether progress at done/total deserves a record. Calls
// must not run concurrently. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(done, total int) bool {
	if s == nil {
		return true
	}
	if total <= 0 || done <= 0 {
		return false
	}
	if done >= total {
		s.emitted = int(100/s.bucket) + 1
		return true
	}
	current := int(float64(done) / float64(total) * 100 / s.bucket)
	if current <= s.emitted {
		return false
	}
	s.emitted = current
	return true
}
