package httpjson

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

const testWatchTxHash = "0x1234567890123456789012345678901234567890123456789012345678901234"

func TestStartWatch(t *testing.T) {
	t.Run("accepts a valid watch", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Monitor.On("StartWatch", mock.Anything, models.WatchRequest{
			TxHash:        testWatchTxHash,
			ChainID:       testChainID,
			SubscriberID:  "ui-42",
			Confirmations: 3,
			PollInterval:  250 * time.Millisecond,
		}).Once()

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/watches").JSON(map[string]any{
			"tx_hash":          testWatchTxHash,
			"chain_id":         testChainID,
			"subscriber_id":    "ui-42",
			"confirmations":    3,
			"poll_interval_ms": 250,
		}).Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, res.StatusCode)
		assertResponseContainsJSON(t, res, "status", "watching")
		assertResponseContainsJSON(t, res, "tx_hash", testWatchTxHash)

		ts.Monitor.AssertExpectations(t)
	})

	t.Run("rejects malformed tx hash", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/watches").JSON(map[string]any{
			"tx_hash":  "0xnothex",
			"chain_id": testChainID,
		}).Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
		ts.Monitor.AssertNotCalled(t, "StartWatch", mock.Anything, mock.Anything)
	})

	t.Run("rejects missing tx hash", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/watches").JSON(map[string]any{
			"chain_id": testChainID,
		}).Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("rejects unregistered chain", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Post().AddPath("/api/v1/watches").JSON(map[string]any{
			"tx_hash":  testWatchTxHash,
			"chain_id": 999,
		}).Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Contains(t, res.String(), "no client found")
		ts.Monitor.AssertNotCalled(t, "StartWatch", mock.Anything, mock.Anything)
	})
}

func TestListWatchEvents(t *testing.T) {
	t.Run("returns recorded events", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		confirmations := uint64(1)
		events := []*models.StatusEvent{
			{TxHash: testWatchTxHash, ChainID: testChainID, Status: models.TxStatusSubmitted},
			{
				TxHash:        testWatchTxHash,
				ChainID:       testChainID,
				Status:        models.TxStatusPending,
				BlockNumber:   50,
				Confirmations: &confirmations,
			},
			{TxHash: testWatchTxHash, ChainID: testChainID, Status: models.TxStatusConfirmed, BlockNumber: 50},
		}

		ts.Database.On("ListStatusEvents", mock.Anything, testWatchTxHash).Return(events, nil).Once()

		// ACT
		res, err := ts.Client.Get().
			AddPath("/api/v1/watches/:hash/events").
			Param("hash", testWatchTxHash).
			Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)

		body := res.Bytes()
		assert.Equal(t, int64(3), gjson.GetBytes(body, "count").Int())
		assert.Equal(t, "submitted", gjson.GetBytes(body, "events.0.status").String())
		assert.Equal(t, int64(1), gjson.GetBytes(body, "events.1.confirmations").Int())
		assert.Equal(t, "confirmed", gjson.GetBytes(body, "events.2.status").String())

		ts.Database.AssertExpectations(t)
	})

	t.Run("returns empty list for unknown hash", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Database.On("ListStatusEvents", mock.Anything, testWatchTxHash).
			Return([]*models.StatusEvent{}, nil).Once()

		// ACT
		res, err := ts.Client.Get().
			AddPath("/api/v1/watches/:hash/events").
			Param("hash", testWatchTxHash).
			Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, int64(0), gjson.GetBytes(res.Bytes(), "count").Int())
	})

	t.Run("rejects malformed hash", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		// ACT
		res, err := ts.Client.Get().
			AddPath("/api/v1/watches/:hash/events").
			Param("hash", "nope").
			Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestKeeperEndpoints(t *testing.T) {
	t.Run("keeper health", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		now := time.Now().UTC()
		ts.Keeper.On("Health").Return(models.KeeperHealth{
			LastTickTime: now,
			LastTxHash:   testWatchTxHash,
		}).Once()

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/keeper/health").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assertResponseContainsJSON(t, res, "last_tx_hash", testWatchTxHash)
		assert.False(t, gjson.GetBytes(res.Bytes(), "last_error").Exists())

		ts.Keeper.AssertExpectations(t)
	})

	t.Run("latest keeper tick", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		tick := &models.KeeperTick{
			StartedAt: time.Now().UTC(),
			TxHash:    testWatchTxHash,
			Accounts:  2,
		}
		ts.Database.On("GetLatestKeeperTick", mock.Anything).Return(tick, nil).Once()

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/keeper/ticks/latest").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assertResponseContainsJSON(t, res, "tx_hash", testWatchTxHash)

		ts.Database.AssertExpectations(t)
	})

	t.Run("latest keeper tick not found", func(t *testing.T) {
		// ARRANGE
		ts := newTestSuite(t)

		ts.Database.On("GetLatestKeeperTick", mock.Anything).Return(nil, nil).Once()

		// ACT
		res, err := ts.Client.Get().AddPath("/api/v1/keeper/ticks/latest").Do()

		// ASSERT
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}
