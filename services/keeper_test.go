package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vaultkeeper-hq/vaultkeeper/config"
	"github.com/vaultkeeper-hq/vaultkeeper/logging"
	"github.com/vaultkeeper-hq/vaultkeeper/models"
)

const testFeedID = "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43"

var (
	accountA = common.HexToAddress("0x1111111111111111111111111111111111111111")
	accountB = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) LatestUpdate(ctx context.Context, feedID string) (*models.PriceAttestation, error) {
	args := m.Called(ctx, feedID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PriceAttestation), args.Error(1)
}

type mockVault struct {
	mock.Mock
}

func (m *mockVault) SignerAddress() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

func (m *mockVault) GetUpdateFee(ctx context.Context, updates [][]byte) (*big.Int, error) {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *mockVault) UpdatePriceAndExecute(
	ctx context.Context,
	updates [][]byte,
	account common.Address,
	fee *big.Int,
) (*types.Transaction, error) {
	args := m.Called(ctx, updates, account, fee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Transaction), args.Error(1)
}

func (m *mockVault) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	args := m.Called(ctx, tx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

func testAttestation() *models.PriceAttestation {
	return &models.PriceAttestation{
		FeedID:      testFeedID,
		Symbol:      "ETH/USD",
		Data:        []byte{0x50, 0x4e, 0x41, 0x55},
		Price:       250000000000,
		Conf:        95000000,
		Expo:        -8,
		PublishTime: time.Now().UTC(),
	}
}

func testTx(nonce uint64) *types.Transaction {
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
}

func minedReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}
}

func testKeeperConfig(accounts ...string) config.KeeperConfig {
	return config.KeeperConfig{
		Enabled:             true,
		ChainID:             8453,
		PriceFeedID:         testFeedID,
		FeedSymbol:          "ETH/USD",
		TickInterval:        10 * time.Millisecond,
		MaxStalenessSeconds: 60,
		MaxConfidenceBps:    50,
		MonitoredAccounts:   accounts,
	}
}

func TestTickSuccess(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)
	tx := testTx(1)
	fee := big.NewInt(1000)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(fee, nil).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountA, fee).Return(tx, nil).Once()
	vault.On("WaitMined", mock.Anything, tx).Return(minedReceipt(), nil).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	before := time.Now().UTC()
	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Equal(t, tx.Hash().Hex(), health.LastTxHash)
	assert.Empty(t, health.LastError)
	assert.False(t, health.LastTickTime.Before(before))

	fetcher.AssertExpectations(t)
	vault.AssertExpectations(t)
}

func TestTickTriggerNotMetIsBenign(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(big.NewInt(1000), nil).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountA, mock.Anything).
		Return(nil, errors.New("execution reverted: trigger condition not met")).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Empty(t, health.LastError, "benign no-op must not register as a failure")
	assert.Empty(t, health.LastTxHash)
	assert.False(t, health.LastTickTime.IsZero())

	vault.AssertExpectations(t)
}

func TestTickOneAccountSucceedsOneDeclines(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)
	tx := testTx(1)
	fee := big.NewInt(1000)

	// One fetch and one fee quote shared by both accounts.
	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(fee, nil).Once()

	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountA, fee).Return(tx, nil).Once()
	vault.On("WaitMined", mock.Anything, tx).Return(minedReceipt(), nil).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountB, fee).
		Return(nil, errors.New("execution reverted: trigger not met")).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex(), accountB.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Equal(t, tx.Hash().Hex(), health.LastTxHash)
	assert.Empty(t, health.LastError)

	fetcher.AssertExpectations(t)
	vault.AssertExpectations(t)
}

func TestTickAccountFailureDoesNotBlockOthers(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)
	tx := testTx(2)
	fee := big.NewInt(1000)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(fee, nil).Once()

	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountA, fee).
		Return(nil, errors.New("insufficient funds for gas")).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountB, fee).Return(tx, nil).Once()
	vault.On("WaitMined", mock.Anything, tx).Return(minedReceipt(), nil).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex(), accountB.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Contains(t, health.LastError, "insufficient funds")
	assert.Equal(t, tx.Hash().Hex(), health.LastTxHash, "second account still executed")

	vault.AssertExpectations(t)
}

func TestTickFetchFailureAbortsTick(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).
		Return(nil, errors.New("hermes unavailable")).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Contains(t, health.LastError, "hermes unavailable")
	assert.False(t, health.LastTickTime.IsZero(), "tick time advances even on failure")

	// Without an attestation nothing touches the chain.
	vault.AssertNotCalled(t, "GetUpdateFee", mock.Anything, mock.Anything)
	vault.AssertNotCalled(t, "UpdatePriceAndExecute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTickFeeQuoteFailureAbortsTick(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).
		Return(nil, errors.New("execution aborted")).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Contains(t, health.LastError, "failed to quote update fee")
	vault.AssertNotCalled(t, "UpdatePriceAndExecute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTickFetchesAttestationOnce(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)
	fee := big.NewInt(1000)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(fee, nil).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, mock.Anything, fee).
		Return(nil, errors.New("trigger condition not met")).Times(3)

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex(), accountB.Hex(), "0x4444444444444444444444444444444444444444"),
		vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	fetcher.AssertNumberOfCalls(t, "LatestUpdate", 1)
	vault.AssertExpectations(t)
}

func TestTickOnChainRevertIsRealFailure(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)
	tx := testTx(1)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(big.NewInt(1000), nil).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountA, mock.Anything).Return(tx, nil).Once()
	vault.On("WaitMined", mock.Anything, tx).
		Return(&types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)}, nil).Once()

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	health := keeper.Health()
	assert.Contains(t, health.LastError, "reverted on chain")
	assert.Empty(t, health.LastTxHash)
}

func TestTickDefaultsToSignerAccount(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)
	signer := common.HexToAddress("0x5555555555555555555555555555555555555555")

	vault.On("SignerAddress").Return(signer)
	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil).Once()
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(big.NewInt(1000), nil).Once()
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, signer, mock.Anything).
		Return(nil, errors.New("trigger condition not met")).Once()

	keeper := NewKeeperService(
		testKeeperConfig(), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Tick(context.Background())

	vault.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	fetcher := new(mockFetcher)
	vault := new(mockVault)

	fetcher.On("LatestUpdate", mock.Anything, testFeedID).Return(testAttestation(), nil)
	vault.On("GetUpdateFee", mock.Anything, mock.Anything).Return(big.NewInt(1000), nil)
	vault.On("UpdatePriceAndExecute", mock.Anything, mock.Anything, accountA, mock.Anything).
		Return(nil, errors.New("trigger condition not met"))

	keeper := NewKeeperService(
		testKeeperConfig(accountA.Hex()), vault, fetcher, nil, nil, logging.NewTesting(t))

	keeper.Start(context.Background())

	require.Eventually(t, func() bool {
		return !keeper.Health().LastTickTime.IsZero()
	}, time.Second, 5*time.Millisecond, "first tick should run immediately")

	keeper.Stop()

	// Stop is idempotent and safe after the loop has exited.
	keeper.Stop()

	lastTick := keeper.Health().LastTickTime
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, lastTick, keeper.Health().LastTickTime, "no ticks after Stop")
}

func TestIsTriggerNotMet(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		benign bool
	}{
		{"trigger condition", errors.New("execution reverted: trigger condition not met"), true},
		{"trigger only", errors.New("execution reverted: TriggerNotReached"), true},
		{"not met", errors.New("price threshold not met"), true},
		{"mixed case", errors.New("Trigger Price NOT MET"), true},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), false},
		{"nonce", errors.New("nonce too low"), false},
		{"timeout", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.benign, isTriggerNotMet(tt.err))
		})
	}
}
