package scout

// MergeJobs folds an incremental log fetch into a previously-held view.
// Records merge by id with last-write-wins on the Updated timestamp; unseen
// ids append in fetch order. Merging the same snapshot twice yields the same
// view as merging it once, which keeps polling correct under at-least-once
// delivery.
func MergeJobs(existing, incoming []Job) []Job {
	index := make(map[string]int, len(existing))
	merged := make([]Job, len(existing))
	copy(merged, existing)
	for i, job := range merged {
		index[job.ID] = i
	}

	for _, job := range incoming {
		if i, seen := index[job.ID]; seen {
			if !job.Updated.Before(merged[i].Updated) {
				merged[i] = job
			}
			continue
		}
		index[job.ID] = len(merged)
		merged = append(merged, job)
	}
	return merged
}
