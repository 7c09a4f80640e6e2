package scout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mergeJob(id string, status JobStatus, updated int64) Job {
	return Job{ID: id, Status: status, Updated: time.Unix(updated, 0)}
}

func TestMergeJobs_NewerReplacesOlder(t *testing.T) {
	t.Parallel()

	existing := []Job{mergeJob("a", JobStatusProcessing, 100)}
	incoming := []Job{mergeJob("a", JobStatusCompleted, 200)}

	merged := MergeJobs(existing, incoming)
	require.Len(t, merged, 1)
	require.Equal(t, JobStatusCompleted, merged[0].Status)
}

func TestMergeJobs_OlderDoesNotRegress(t *testing.T) {
	t.Parallel()

	existing := []Job{mergeJob("a", JobStatusCompleted, 200)}
	incoming := []Job{mergeJob("a", JobStatusProcessing, 100)}

	merged := MergeJobs(existing, incoming)
	require.Len(t, merged, 1)
	require.Equal(t, JobStatusCompleted, merged[0].Status)
}

func TestMergeJobs_UnseenIDsAppendInFetchOrder(t *testing.T) {
	t.Parallel()

	existing := []Job{mergeJob("a", JobStatusStarted, 10)}
	incoming := []Job{
		mergeJob("b", JobStatusStarted, 20),
		mergeJob("c", JobStatusStarted, 30),
	}

	merged := MergeJobs(existing, incoming)
	require.Len(t, merged, 3)
	require.Equal(t, "a", merged[0].ID)
	require.Equal(t, "b", merged[1].ID)
	require.Equal(t, "c", merged[2].ID)
}

func TestMergeJobs_Idempotent(t *testing.T) {
	t.Parallel()

	existing := []Job{
		mergeJob("a", JobStatusProcessing, 100),
		mergeJob("b", JobStatusStarted, 50),
	}
	snapshot := []Job{
		mergeJob("a", JobStatusCompleted, 200),
		mergeJob("c", JobStatusStarted, 60),
	}

	once := MergeJobs(existing, snapshot)
	twice := MergeJobs(once, snapshot)
	require.Equal(t, once, twice)
}

func TestMergeJobs_EmptyInputs(t *testing.T) {
	t.Parallel()

	require.Empty(t, MergeJobs(nil, nil))

	incoming := []Job{mergeJob("a", JobStatusStarted, 1)}
	merged := MergeJobs(nil, incoming)
	require.Len(t, merged, 1)

	merged = MergeJobs(incoming, nil)
	require.Len(t, merged, 1)
}

func TestMergeJobs_DuplicateIDsWithinSnapshot(t *testing.T) {
	t.Parallel()

	incoming := []Job{
		mergeJob("a", JobStatusProcessing, 100),
		mergeJob("a", JobStatusCompleted, 200),
	}
	merged := MergeJobs(nil, incoming)
	require.Len(t, merged, 1)
	require.Equal(t, JobStatusCompleted, merged[0].Status)
}
