package batch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/matching"
	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/terminology"
)

func createTestJob() *Job {
	return NewJob(Request{
		Terms:      []string{"diabetes", "aspirin"},
		Systems:    []terminology.Vocabulary{terminology.SNOMED},
		Threshold:  0.7,
		MaxResults: 5,
	})
}

func TestMemoryJobStore_SaveAndGet(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()
	job := createTestJob()

	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 2, got.TotalTerms)

	// Snapshots are copies: mutating the returned job must not leak back.
	got.Status = StatusCompleted
	again, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestMemoryJobStore_GetUnknown(t *testing.T) {
	store := NewMemoryJobStore()

	_, err := store.Get(context.Background(), "no-such-job")
	require.Error(t, err)
	stdErr := errors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, errors.ErrCodeJobNotFound, stdErr.Code)
}

func TestMemoryJobStore_Sweep(t *testing.T) {
	store := NewMemoryJobStore()
	ctx := context.Background()

	old := createTestJob()
	old.Status = StatusCompleted
	past := time.Now().UTC().Add(-2 * time.Hour)
	old.CompletedAt = &past
	require.NoError(t, store.Save(ctx, old))

	fresh := createTestJob()
	fresh.Status = StatusCompleted
	now := time.Now().UTC()
	fresh.CompletedAt = &now
	require.NoError(t, store.Save(ctx, fresh))

	running := createTestJob()
	running.Status = StatusProcessing
	require.NoError(t, store.Save(ctx, running))

	removed := store.Sweep(time.Hour)
	assert.Equal(t, 1, removed)

	_, err := store.Get(ctx, old.ID)
	assert.Error(t, err)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, running.ID)
	assert.NoError(t, err)
}

func TestRedisJobStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewRedisJobStore(client, time.Hour)
	ctx := context.Background()

	job := createTestJob()
	job.Status = StatusProcessing
	job.ProcessedTerms = 1
	job.Results[0] = TermResult{
		Term: "diabetes",
		Response: &matching.MappingResponse{
			Term:       "diabetes",
			Normalized: "diabetes",
			Results: []matching.MappingResult{
				{
					Vocabulary: terminology.SNOMED,
					Code:       "73211009",
					Display:    "Diabetes mellitus",
					Confidence: 1.0,
					MatchType:  matching.StageExact,
				},
				{
					Vocabulary: terminology.SNOMED,
					Code:       "44054006",
					Display:    "Type 2 diabetes mellitus",
					Confidence: 0.72,
					MatchType:  matching.StageFuzzy,
				},
			},
		},
	}
	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, StatusProcessing, got.Status)
	require.Len(t, got.Results, 2)

	// The populated result must survive the round trip, stage names
	// included.
	require.NotNil(t, got.Results[0].Response)
	assert.Equal(t, job.Results[0].Response.Results, got.Results[0].Response.Results)
	assert.Equal(t, matching.StageExact, got.Results[0].Response.Results[0].MatchType)
	assert.Equal(t, matching.StageFuzzy, got.Results[0].Response.Results[1].MatchType)

	// Live jobs never expire.
	assert.Equal(t, time.Duration(0), mr.TTL(jobKey(job.ID)))
}

func TestRedisJobStore_TerminalJobsExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewRedisJobStore(client, time.Hour)
	ctx := context.Background()

	job := createTestJob()
	job.Status = StatusCompleted
	now := time.Now().UTC()
	job.CompletedAt = &now
	require.NoError(t, store.Save(ctx, job))

	assert.Equal(t, time.Hour, mr.TTL(jobKey(job.ID)))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, job.ID)
	require.Error(t, err)
	stdErr := errors.AsStandardError(err)
	require.NotNil(t, stdErr)
	assert.Equal(t, errors.ErrCodeJobNotFound, stdErr.Code)
}

func TestRedisJobStore_Delete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewRedisJobStore(client, time.Hour)
	ctx := context.Background()

	job := createTestJob()
	require.NoError(t, store.Save(ctx, job))
	require.NoError(t, store.Delete(ctx, job.ID))

	_, err := store.Get(ctx, job.ID)
	assert.Error(t, err)
}
