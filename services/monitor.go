package services

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vaultkeeper-hq/vaultkeeper/db"
	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// MonitorService tracks the lifecycle of submitted transactions. Each watch
// runs as an independent goroutine that polls for a receipt, tracks
// confirmation depth, and emits ordered status events through the publisher.
type MonitorService struct {
	registry  *ClientRegistry
	publisher *StatusPublisher
	db        db.Database
	metrics   *MetricsService
	logger    zerolog.Logger
}

// NewMonitorService creates a monitor. The database and metrics service are
// optional; a nil value disables persistence or metrics for headless
// operation.
func NewMonitorService(
	registry *ClientRegistry,
	publisher *StatusPublisher,
	database db.Database,
	metrics *MetricsService,
	logger zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		registry:  registry,
		publisher: publisher,
		db:        database,
		metrics:   metrics,
		logger:    logger.With().Str(logging.FieldModule, "tx_monitor").Logger(),
	}
}

// StartWatch begins monitoring a transaction. It returns immediately; status
// events arrive asynchronously via the publisher. The watch ends when a
// terminal status is emitted or ctx is cancelled.
func (s *MonitorService) StartWatch(ctx context.Context, req models.WatchRequest) {
	go s.watch(ctx, req.Normalized())
}

func (s *MonitorService) watch(ctx context.Context, req models.WatchRequest) {
	logger := s.logger.With().
		Str(logging.FieldTxHash, req.TxHash).
		Uint64(logging.FieldChain, req.ChainID).
		Logger()

	client, err := s.registry.GetClient(req.ChainID)
	if err != nil {
		// No connection means no observability channel exists to report
		// through: a configuration error, not a per-request failure.
		logger.Error().Err(err).Msg("Cannot monitor transaction, chain not registered")
		return
	}

	if s.metrics != nil {
		s.metrics.WatchStarted(req.ChainID)
		defer s.metrics.WatchFinished(req.ChainID)
	}

	s.emit(ctx, req, models.StatusEvent{
		TxHash:  req.TxHash,
		ChainID: req.ChainID,
		Status:  models.TxStatusSubmitted,
	})

	receipt, ok := s.awaitReceipt(ctx, client, req, logger)
	if !ok {
		return
	}

	if receipt.Status == types.ReceiptStatusFailed {
		logger.Info().Uint64(logging.FieldBlock, receipt.BlockNumber.Uint64()).Msg("Transaction reverted")
		s.emit(ctx, req, models.StatusEvent{
			TxHash:      req.TxHash,
			ChainID:     req.ChainID,
			Status:      models.TxStatusFailed,
			BlockNumber: receipt.BlockNumber.Uint64(),
			Reason:      "reverted",
		})
		return
	}

	s.awaitConfirmations(ctx, client, req, receipt.BlockNumber.Uint64(), logger)
}

// awaitReceipt polls until a receipt appears. There is no timeout: the loop
// runs until the receipt exists, an unexpected error occurs, or ctx ends.
func (s *MonitorService) awaitReceipt(
	ctx context.Context,
	client ChainClient,
	req models.WatchRequest,
	logger zerolog.Logger,
) (*types.Receipt, bool) {
	for {
		receipt, err := client.TransactionReceipt(ctx, common.HexToHash(req.TxHash))
		switch {
		case err == nil:
			return receipt, true

		case errors.Is(err, ethereum.NotFound):
			s.emit(ctx, req, models.StatusEvent{
				TxHash:  req.TxHash,
				ChainID: req.ChainID,
				Status:  models.TxStatusPending,
			})

		case ctx.Err() != nil:
			logger.Debug().Msg("Watch cancelled while polling for receipt")
			return nil, false

		default:
			logger.Warn().Err(err).Msg("Receipt lookup failed, terminating watch")
			s.emit(ctx, req, models.StatusEvent{
				TxHash:  req.TxHash,
				ChainID: req.ChainID,
				Status:  models.TxStatusFailed,
				Reason:  err.Error(),
			})
			return nil, false
		}

		if !s.sleep(ctx, req.PollInterval) {
			logger.Debug().Msg("Watch cancelled while polling for receipt")
			return nil, false
		}
	}
}

// awaitConfirmations polls the chain height until the receipt has the
// requested confirmation depth: confirmed once height >= receiptBlock + N - 1.
func (s *MonitorService) awaitConfirmations(
	ctx context.Context,
	client ChainClient,
	req models.WatchRequest,
	receiptBlock uint64,
	logger zerolog.Logger,
) {
	targetBlock := receiptBlock + req.Confirmations - 1

	for {
		height, err := client.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug().Msg("Watch cancelled while awaiting confirmations")
				return
			}

			logger.Warn().Err(err).Msg("Height lookup failed, terminating watch")
			s.emit(ctx, req, models.StatusEvent{
				TxHash:      req.TxHash,
				ChainID:     req.ChainID,
				Status:      models.TxStatusFailed,
				BlockNumber: receiptBlock,
				Reason:      err.Error(),
			})
			return
		}

		if height >= targetBlock {
			logger.Info().
				Uint64(logging.FieldBlock, receiptBlock).
				Uint64("confirmations", req.Confirmations).
				Msg("Transaction confirmed")

			s.emit(ctx, req, models.StatusEvent{
				TxHash:      req.TxHash,
				ChainID:     req.ChainID,
				Status:      models.TxStatusConfirmed,
				BlockNumber: receiptBlock,
			})
			return
		}

		// Confirmations so far = blocks mined on top of the receipt block.
		confirmations := uint64(0)
		if height > receiptBlock {
			confirmations = height - receiptBlock
		}

		s.emit(ctx, req, models.StatusEvent{
			TxHash:        req.TxHash,
			ChainID:       req.ChainID,
			Status:        models.TxStatusPending,
			BlockNumber:   receiptBlock,
			Confirmations: &confirmations,
		})

		if !s.sleep(ctx, req.PollInterval) {
			logger.Debug().Msg("Watch cancelled while awaiting confirmations")
			return
		}
	}
}

func (s *MonitorService) emit(ctx context.Context, req models.WatchRequest, event models.StatusEvent) {
	s.publisher.Publish(event, req.SubscriberID)

	if s.metrics != nil {
		s.metrics.StatusEventEmitted(req.ChainID, event.Status)
	}

	if s.db != nil && ctx.Err() == nil {
		if err := s.db.CreateStatusEvent(ctx, &event); err != nil {
			s.logger.Warn().Err(err).
				Str(logging.FieldTxHash, event.TxHash).
				Msg("Failed to persist status event")
		}
	}
}

// sleep waits out the poll interval, returning false if ctx ended first.
func (s *MonitorService) sleep(ctx context.Context, interval time.Duration) bool {
	select {
	case <-time.After(interval):
		return true
	case <-ctx.Done():
		return false
	}
}
