package terminology

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCachedStore(t *testing.T) (*CachedStore, redismock.ClientMock) {
	inner := createTestStore()
	rdb, mock := redismock.NewClientMock()
	cached := NewCachedStore(inner, rdb, time.Minute)
	return cached, mock
}

func TestCachedStore_Lookup_MissPopulatesCache(t *testing.T) {
	cached, mock := createCachedStore(t)

	expected := []Concept{{Vocabulary: SNOMED, Code: "38341003", Display: "Hypertension", EntityType: "disorder"}}
	payload, err := json.Marshal(expected)
	require.NoError(t, err)

	mock.ExpectGet("term:lookup:snomed:hypertension").RedisNil()
	mock.ExpectSet("term:lookup:snomed:hypertension", payload, time.Minute).SetVal("OK")

	concepts, err := cached.Lookup(context.Background(), SNOMED, "hypertension")
	require.NoError(t, err)
	assert.Equal(t, expected, concepts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_Lookup_Hit(t *testing.T) {
	cached, mock := createCachedStore(t)

	// The cached value differs from the inner store to prove it is served
	// without consulting the inner store.
	cachedConcepts := []Concept{{Vocabulary: SNOMED, Code: "cached-code", Display: "Cached"}}
	payload, err := json.Marshal(cachedConcepts)
	require.NoError(t, err)

	mock.ExpectGet("term:lookup:snomed:hypertension").SetVal(string(payload))

	concepts, err := cached.Lookup(context.Background(), SNOMED, "hypertension")
	require.NoError(t, err)
	assert.Equal(t, "cached-code", concepts[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_RedisFailureFallsThrough(t *testing.T) {
	cached, mock := createCachedStore(t)

	mock.ExpectGet("term:lookup:snomed:hypertension").SetErr(assert.AnError)
	// Population still attempted; its failure is also swallowed.
	mock.Regexp().ExpectSet("term:lookup:snomed:hypertension", `.*`, time.Minute).SetErr(assert.AnError)

	concepts, err := cached.Lookup(context.Background(), SNOMED, "hypertension")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "38341003", concepts[0].Code)
}

func TestCachedStore_CorruptEntryFallsThrough(t *testing.T) {
	cached, mock := createCachedStore(t)

	mock.ExpectGet("term:syn:snomed:htn").SetVal("{not json")
	mock.Regexp().ExpectSet("term:syn:snomed:htn", `.*`, time.Minute).SetVal("OK")

	concepts, err := cached.Synonyms(context.Background(), SNOMED, "htn")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "38341003", concepts[0].Code)
}

func TestCachedStore_CandidatesKeyIncludesBudget(t *testing.T) {
	cached, mock := createCachedStore(t)

	mock.ExpectGet("term:cand:snomed:hypertensoin:50").RedisNil()
	mock.Regexp().ExpectSet("term:cand:snomed:hypertensoin:50", `.*`, time.Minute).SetVal("OK")

	_, err := cached.Candidates(context.Background(), SNOMED, "hypertensoin", 50)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
