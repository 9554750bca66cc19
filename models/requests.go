package models

// StartWatchRequest is the payload for starting a monitoring task over HTTP.
type StartWatchRequest struct {
	TxHash         string `json:"tx_hash" binding:"required"`
	ChainID        uint64 `json:"chain_id" binding:"required"`
	SubscriberID   string `json:"subscriber_id"`
	Confirmations  uint64 `json:"confirmations"`
	PollIntervalMs uint64 `json:"poll_interval_ms"`
}
