package contracts

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/vaultkeeper-hq/vaultkeeper/config"
)

// Vault wraps the two contract entry points the keeper depends on: the price
// oracle's fee quote and the vault's combined update+execute call. All
// transactions are signed with the keeper's key; no other component shares it.
type Vault struct {
	client *ethclient.Client
	vault  *bind.BoundContract
	oracle *bind.BoundContract
	auth   *bind.TransactOpts
	signer common.Address

	maxStaleness *big.Int
	maxConfBps   *big.Int
}

// NewVault initializes contract bindings from the keeper configuration.
func NewVault(cfg config.KeeperConfig, client *ethclient.Client) (*Vault, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, new(big.Int).SetUint64(cfg.ChainID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transactor")
	}

	vaultABI, err := abi.JSON(strings.NewReader(config.UpdatePriceAndExecuteABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse vault ABI")
	}

	oracleABI, err := abi.JSON(strings.NewReader(config.GetUpdateFeeABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse oracle ABI")
	}

	return &Vault{
		client:       client,
		vault:        bind.NewBoundContract(common.HexToAddress(cfg.VaultAddress), vaultABI, client, client, client),
		oracle:       bind.NewBoundContract(common.HexToAddress(cfg.OracleAddress), oracleABI, client, client, client),
		auth:         auth,
		signer:       crypto.PubkeyToAddress(privateKey.PublicKey),
		maxStaleness: new(big.Int).SetUint64(cfg.MaxStalenessSeconds),
		maxConfBps:   new(big.Int).SetUint64(cfg.MaxConfidenceBps),
	}, nil
}

// SignerAddress returns the address of the keeper's signing key.
func (v *Vault) SignerAddress() common.Address {
	return v.signer
}

// GetUpdateFee asks the price oracle for the exact fee, in native currency
// base units, required to apply the attestation payloads.
func (v *Vault) GetUpdateFee(ctx context.Context, updates [][]byte) (*big.Int, error) {
	var out []interface{}

	err := v.oracle.Call(&bind.CallOpts{Context: ctx}, &out, "getUpdateFee", updates)
	if err != nil {
		return nil, errors.Wrap(err, "getUpdateFee call failed")
	}

	if len(out) == 0 {
		return nil, errors.New("empty getUpdateFee response")
	}

	fee, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.New("unexpected getUpdateFee return type")
	}

	return fee, nil
}

// UpdatePriceAndExecute submits a single transaction that applies the
// attestation payloads on chain and attempts the protected action for the
// account, attaching the quoted fee as transaction value.
func (v *Vault) UpdatePriceAndExecute(
	ctx context.Context,
	updates [][]byte,
	account common.Address,
	fee *big.Int,
) (*types.Transaction, error) {
	opts := *v.auth
	opts.Context = ctx
	opts.Value = fee

	return v.vault.Transact(&opts, "updatePriceAndExecute", updates, v.maxStaleness, v.maxConfBps, account)
}

// WaitMined blocks until the transaction is mined and returns its receipt.
func (v *Vault) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, v.client, tx)
}
