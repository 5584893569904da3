package store

// DeepMerge applies patch onto dst in place, JSON-patch style: a key whose
// patch value is nil is deleted from dst; a key whose patch value is a
// nested map is merged recursively; anything else overwrites. Concurrent
// callers never see a torn merge because every store implementation
// guards this call with its own per-run critical section (an in-process
// mutex for MemoryRunStore, a row lock for PostgresRunStore).
func DeepMerge(dst, patch map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		if patchChild, ok := v.(map[string]interface{}); ok {
			existingChild, _ := dst[k].(map[string]interface{})
			dst[k] = DeepMerge(cloneMap(existingChild), patchChild)
			continue
		}
		dst[k] = v
	}
	return dst
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cloneStepState returns a deep-enough copy of a StepState for safe
// hand-off across the store boundary: callers must not observe mutations
// made after a Get/List call returns.
func cloneStepState(s *StepState) *StepState {
	if s == nil {
		return nil
	}
	out := &StepState{Status: s.Status, Fields: cloneMap(s.Fields)}
	if s.Retry != nil {
		r := *s.Retry
		out.Retry = &r
	}
	return out
}

func cloneRunRecord(r *RunRecord) *RunRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Steps = make(map[string]*StepState, len(r.Steps))
	for k, v := range r.Steps {
		out.Steps[k] = cloneStepState(v)
	}
	out.Metrics = make(map[string]int64, len(r.Metrics))
	for k, v := range r.Metrics {
		out.Metrics[k] = v
	}
	out.LocationWarnings = make(map[string]int64, len(r.LocationWarnings))
	for k, v := range r.LocationWarnings {
		out.LocationWarnings[k] = v
	}
	out.FileManifest = make(map[string]string, len(r.FileManifest))
	for k, v := range r.FileManifest {
		out.FileManifest[k] = v
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
