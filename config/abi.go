package config

// GetUpdateFeeABI is the ABI for the price oracle's getUpdateFee function.
// The call is read-only and returns the exact fee, in native currency base
// units, required to apply the given attestation payloads on chain.
const GetUpdateFeeABI = `[
  {
    "inputs": [
      {"internalType": "bytes[]", "name": "updateData", "type": "bytes[]"}
    ],
    "name": "getUpdateFee",
    "outputs": [
      {"internalType": "uint256", "name": "feeAmount", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

// UpdatePriceAndExecuteABI is the ABI for the vault's combined entry point.
// It applies the attestation payloads on chain and attempts the protected
// action for the account; the contract reverts with a human-readable reason
// when the trigger condition is not met.
const UpdatePriceAndExecuteABI = `[
  {
    "inputs": [
      {"internalType": "bytes[]", "name": "priceUpdate", "type": "bytes[]"},
      {"internalType": "uint256", "name": "maxStalenessSeconds", "type": "uint256"},
      {"internalType": "uint256", "name": "maxConfBps", "type": "uint256"},
      {"internalType": "address", "name": "account", "type": "address"}
    ],
    "name": "updatePriceAndExecute",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  }
]`
