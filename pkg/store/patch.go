package store

import "time"

// applyStepPatch interprets the well-known keys of a MergeStep patch
// ("status", "retry") onto the typed StepState fields and routes
// everything else into Fields via DeepMerge, so every step can carry its
// own private payload shape without this package needing to know it.
func applyStepPatch(ss *StepState, patch map[string]interface{}) {
	rest := map[string]interface{}{}
	for k, v := range patch {
		switch k {
		case "status":
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				ss.Status = StepStatus(s)
			}
		case "retry":
			if v == nil {
				ss.Retry = nil
				continue
			}
			child, _ := v.(map[string]interface{})
			ss.Retry = mergeRetry(ss.Retry, child)
		default:
			rest[k] = v
		}
	}
	ss.Fields = DeepMerge(ss.Fields, rest)
}

func mergeRetry(existing *RetryState, patch map[string]interface{}) *RetryState {
	r := RetryState{}
	if existing != nil {
		r = *existing
	}
	if v, ok := patch["retry_attempt"]; ok {
		if n, ok := toInt(v); ok {
			r.RetryAttempt = n
		}
	}
	if v, ok := patch["next_retry_at"]; ok {
		if t, ok := v.(time.Time); ok {
			r.NextRetryAt = t
		}
	}
	if v, ok := patch["last_http_status"]; ok {
		if n, ok := toInt(v); ok {
			r.LastHTTPStatus = n
		}
	}
	if v, ok := patch["last_error"]; ok {
		if s, ok := v.(string); ok {
			r.LastError = s
		}
	}
	if v, ok := patch["status"]; ok {
		if s, ok := v.(string); ok {
			r.Status = s
		}
	}
	return &r
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// applyRunPatch interprets the well-known top-level keys of a MergeRun
// patch onto the typed RunRecord fields; "metrics", "location_warnings",
// and "file_manifest" are merged key-by-key rather than replaced wholesale
// so concurrent partial updates from different steps do not clobber each
// other.
func applyRunPatch(run *RunRecord, patch map[string]interface{}) {
	for k, v := range patch {
		switch k {
		case "status":
			if s, ok := v.(string); ok {
				run.Status = RunStatus(s)
			}
		case "finished_at":
			if v == nil {
				run.FinishedAt = nil
				continue
			}
			if t, ok := v.(time.Time); ok {
				run.FinishedAt = &t
			}
		case "runtime_ms":
			if n, ok := toInt(v); ok {
				run.RuntimeMS = int64(n)
			}
		case "warning_count":
			if n, ok := toInt(v); ok {
				run.WarningCount = n
			}
		case "cancel_requested":
			if b, ok := v.(bool); ok {
				run.CancelRequested = b
			}
		case "cancelled_by_user":
			if b, ok := v.(bool); ok {
				run.CancelledByUser = b
			}
		case "error_message":
			if s, ok := v.(string); ok {
				run.ErrorMessage = s
			}
		case "current_step":
			if s, ok := v.(string); ok {
				run.CurrentStep = s
			}
		case "metrics":
			mergeInt64Map(run.Metrics, v)
		case "location_warnings":
			mergeInt64Map(run.LocationWarnings, v)
		case "file_manifest":
			mergeStringMap(run.FileManifest, v)
		}
	}
}

func mergeInt64Map(dst map[string]int64, v interface{}) {
	child, ok := v.(map[string]interface{})
	if !ok {
		return
	}
	for k, raw := range child {
		if n, ok := toInt(raw); ok {
			dst[k] = int64(n)
		}
	}
}

func mergeStringMap(dst map[string]string, v interface{}) {
	child, ok := v.(map[string]interface{})
	if !ok {
		return
	}
	for k, raw := range child {
		if s, ok := raw.(string); ok {
			dst[k] = s
		}
	}
}
