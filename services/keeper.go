package services

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vaultkeeper-hq/vaultkeeper/config"
	"github.com/vaultkeeper-hq/vaultkeeper/db"
	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

// tickTimeout bounds one tick end to end, including waiting for mined
// transactions on every monitored account.
const tickTimeout = 2 * time.Minute

// AttestationFetcher retrieves the newest signed price update for a feed.
type AttestationFetcher interface {
	LatestUpdate(ctx context.Context, feedID string) (*models.PriceAttestation, error)
}

// VaultExecutor is the contract surface the keeper drives. *contracts.Vault
// satisfies it.
type VaultExecutor interface {
	SignerAddress() common.Address
	GetUpdateFee(ctx context.Context, updates [][]byte) (*big.Int, error)
	UpdatePriceAndExecute(ctx context.Context, updates [][]byte, account common.Address, fee *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// KeeperService runs the recurring execution loop: fetch one attestation,
// quote the fee, then submit one update+execute transaction per monitored
// account. Accounts are processed sequentially; the signer is used by no
// other component, so there is no nonce contention.
type KeeperService struct {
	cfg      config.KeeperConfig
	vault    VaultExecutor
	fetcher  AttestationFetcher
	db       db.Database
	metrics  *MetricsService
	logger   zerolog.Logger
	accounts []common.Address

	healthMu sync.Mutex
	health   models.KeeperHealth

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKeeperService creates a keeper. The database and metrics service are
// optional and may be nil.
func NewKeeperService(
	cfg config.KeeperConfig,
	vault VaultExecutor,
	fetcher AttestationFetcher,
	database db.Database,
	metrics *MetricsService,
	logger zerolog.Logger,
) *KeeperService {
	accounts := make([]common.Address, 0, len(cfg.MonitoredAccounts))
	for _, raw := range cfg.MonitoredAccounts {
		accounts = append(accounts, common.HexToAddress(raw))
	}

	return &KeeperService{
		cfg:      cfg,
		vault:    vault,
		fetcher:  fetcher,
		db:       database,
		metrics:  metrics,
		accounts: accounts,
		logger: logger.With().
			Str(logging.FieldModule, "keeper").
			Str(logging.FieldFeed, cfg.PriceFeedID).
			Logger(),
	}
}

// Start begins the recurring schedule: one tick immediately, then one per
// tick interval. Only one tick is ever in flight; ticker fires that land
// while a tick is still running are dropped.
func (s *KeeperService) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		s.logger.Warn().Msg("Keeper already started")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(runCtx, done)
}

// Stop cancels the recurring schedule and waits for an in-flight tick to run
// to completion.
func (s *KeeperService) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Health returns a snapshot of the keeper's health state.
func (s *KeeperService) Health() models.KeeperHealth {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	return s.health
}

func (s *KeeperService) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.logger.Info().
		Dur("tick_interval", s.cfg.TickInterval).
		Int("monitored_accounts", len(s.accounts)).
		Msg("Keeper loop started")

	s.runTick()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runTick()
		case <-ctx.Done():
			s.logger.Info().Msg("Keeper loop stopped")
			return
		}
	}
}

// runTick executes one tick on its own deadline, detached from the loop
// context. Stopping the keeper ends the schedule without interrupting a
// transaction that is already in flight.
func (s *KeeperService) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	s.Tick(ctx)
}

// Tick runs one iteration of the loop. A failure for one account never
// blocks the remaining accounts, and no failure ever stops the schedule.
func (s *KeeperService) Tick(ctx context.Context) {
	start := time.Now().UTC()
	s.setLastTick(start)

	if s.metrics != nil {
		s.metrics.KeeperTickStarted(start)
	}

	accounts := s.accounts
	if len(accounts) == 0 {
		// Self-monitoring fallback for bootstrap and testing.
		accounts = []common.Address{s.vault.SignerAddress()}
	}

	// One fetch is shared across every account in the tick; the attestation
	// is not account-specific and re-fetching would race the fee quote.
	attestation, err := s.fetcher.LatestUpdate(ctx, s.cfg.PriceFeedID)
	if err != nil {
		s.failTick(ctx, start, len(accounts), errors.Wrap(err, "failed to fetch price attestation"))
		return
	}

	updates := [][]byte{attestation.Data}

	fee, err := s.vault.GetUpdateFee(ctx, updates)
	if err != nil {
		s.failTick(ctx, start, len(accounts), errors.Wrap(err, "failed to quote update fee"))
		return
	}

	s.logger.Debug().
		Str("symbol", attestation.Symbol).
		Int64("price", attestation.Price).
		Str("fee_wei", fee.String()).
		Msg("Attestation fetched and fee quoted")

	var lastTxHash string

	for _, account := range accounts {
		txHash, err := s.executeForAccount(ctx, updates, account, fee)
		switch {
		case err == nil:
			lastTxHash = txHash
			s.setLastTxHash(txHash)
			if s.metrics != nil {
				s.metrics.KeeperSubmission()
			}
			s.logger.Info().
				Str(logging.FieldAccount, account.Hex()).
				Str(logging.FieldTxHash, txHash).
				Msg("Executed update for account")

		case isTriggerNotMet(err):
			// The contract declined to act because the price condition does
			// not hold. That is the expected outcome of most ticks.
			if s.metrics != nil {
				s.metrics.KeeperTriggerNoop()
			}
			s.logger.Debug().
				Str(logging.FieldAccount, account.Hex()).
				Msg("Trigger condition not met, nothing to execute")

		default:
			s.setLastError(err.Error())
			if s.metrics != nil {
				s.metrics.KeeperAccountError()
			}
			s.logger.Warn().Err(err).
				Str(logging.FieldAccount, account.Hex()).
				Msg("Failed to execute update for account")
		}
	}

	s.recordTick(ctx, models.KeeperTick{
		StartedAt: start,
		TxHash:    lastTxHash,
		Accounts:  len(accounts),
	})
}

func (s *KeeperService) executeForAccount(
	ctx context.Context,
	updates [][]byte,
	account common.Address,
	fee *big.Int,
) (string, error) {
	tx, err := s.vault.UpdatePriceAndExecute(ctx, updates, account, fee)
	if err != nil {
		return "", err
	}

	receipt, err := s.vault.WaitMined(ctx, tx)
	if err != nil {
		return "", errors.Wrap(err, "failed to wait for transaction")
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return "", errors.Errorf("transaction %s reverted on chain", tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

// failTick aborts the whole tick: with no attestation or fee there is
// nothing to submit for any account. The next scheduled tick proceeds
// independently.
func (s *KeeperService) failTick(ctx context.Context, start time.Time, accounts int, err error) {
	s.setLastError(err.Error())
	if s.metrics != nil {
		s.metrics.KeeperTickError()
	}
	s.logger.Warn().Err(err).Msg("Keeper tick aborted")

	s.recordTick(ctx, models.KeeperTick{
		StartedAt: start,
		Error:     err.Error(),
		Accounts:  accounts,
	})
}

func (s *KeeperService) recordTick(ctx context.Context, tick models.KeeperTick) {
	if s.db == nil || ctx.Err() != nil {
		return
	}
	if err := s.db.CreateKeeperTick(ctx, &tick); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist keeper tick")
	}
}

func (s *KeeperService) setLastTick(t time.Time) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.health.LastTickTime = t
}

func (s *KeeperService) setLastTxHash(txHash string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.health.LastTxHash = txHash
}

func (s *KeeperService) setLastError(message string) {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()
	s.health.LastError = message
}

// isTriggerNotMet classifies a revert as a benign no-op when its message
// indicates the contract's trigger condition does not hold. Substring
// matching is a fallback for contracts without typed errors; a typed revert
// code would be preferable.
func isTriggerNotMet(err error) bool {
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "trigger") || strings.Contains(message, "not met")
}
