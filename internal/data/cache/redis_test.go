package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/macrocorr/internal/domain"
)

func sampleObs() []domain.Observation {
	return []domain.Observation{
		{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Value: 4820.5},
		{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Value: 5096.3},
	}
}

func TestObservationCache_Miss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Hour)

	mock.ExpectGet("macrocorr:obs:fred:SP500").RedisNil()

	_, hit, err := c.Get(context.Background(), "fred", "SP500")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationCache_SetThenGet(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Hour)

	obs := sampleObs()
	payload, err := json.Marshal(obs)
	require.NoError(t, err)

	mock.ExpectSet("macrocorr:obs:yahoo:^GSPC", payload, time.Hour).SetVal("OK")
	require.NoError(t, c.Set(context.Background(), "yahoo", "^GSPC", obs))

	mock.ExpectGet("macrocorr:obs:yahoo:^GSPC").SetVal(string(payload))
	got, hit, err := c.Get(context.Background(), "yahoo", "^GSPC")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, obs, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationCache_CorruptPayload(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewWithClient(client, time.Hour)

	mock.ExpectGet("macrocorr:obs:stooq:spy.us").SetVal("{not json")

	_, hit, err := c.Get(context.Background(), "stooq", "spy.us")
	require.Error(t, err)
	assert.False(t, hit)
}
