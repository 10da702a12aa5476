package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantagesec/gatewarden/pkg/store"
	"github.com/vantagesec/gatewarden/pkg/types"
)

func TestRedisStoreAppend(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := store.NewRedisStore(client, "gatewarden:blocked", 100)

	record := blockedRecord("r0", "203.0.113.7", "rate limit exceeded")
	data, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectTxPipeline()
	mock.ExpectLPush("gatewarden:blocked", data).SetVal(1)
	mock.ExpectLTrim("gatewarden:blocked", 0, 99).SetVal("OK")
	mock.ExpectTxPipelineExec()

	require.NoError(t, s.Append(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreList(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := store.NewRedisStore(client, "", 100)

	first, err := json.Marshal(blockedRecord("r0", "203.0.113.7", "csrf violation"))
	require.NoError(t, err)
	second, err := json.Marshal(blockedRecord("r1", "198.51.100.9", "rate limit exceeded"))
	require.NoError(t, err)

	mock.ExpectLLen("gatewarden:blocked").SetVal(2)
	mock.ExpectLRange("gatewarden:blocked", 0, 1).SetVal([]string{string(first), string(second)})

	records, total, err := s.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)
	assert.Equal(t, "r0", records[0].ID)
	assert.Equal(t, "r1", records[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreListSkipsCorruptEntries(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := store.NewRedisStore(client, "", 100)

	good, err := json.Marshal(blockedRecord("r0", "203.0.113.7", "blocked"))
	require.NoError(t, err)

	mock.ExpectLLen("gatewarden:blocked").SetVal(2)
	mock.ExpectLRange("gatewarden:blocked", 0, 1).SetVal([]string{"not json", string(good)})

	records, total, err := s.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 1)
	assert.Equal(t, "r0", records[0].ID)
}

func TestRedisStoreStats(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := store.NewRedisStore(client, "", 100)

	record := blockedRecord("r0", "203.0.113.7", "rate limit exceeded")
	data, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectLLen("gatewarden:blocked").SetVal(1)
	mock.ExpectLRange("gatewarden:blocked", 0, 0).SetVal([]string{string(data)})

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalBlocked)
	assert.Equal(t, 1, stats.ByReason["rate limit exceeded"])
	assert.Equal(t, 1, stats.BySeverity[string(types.SeverityMedium)])
}

func TestRedisStoreClear(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := store.NewRedisStore(client, "", 100)

	mock.ExpectDel("gatewarden:blocked").SetVal(1)
	require.NoError(t, s.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
