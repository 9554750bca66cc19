package models

import (
	"time"
)

// TxStatus represents the lifecycle state of a watched transaction.
// A watch progresses submitted -> pending* -> (confirmed | failed); the
// replaced and dropped states are reserved for future replacement detection
// and are never emitted today.
type TxStatus string

const (
	TxStatusSubmitted TxStatus = "submitted"
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusReplaced  TxStatus = "replaced"
	TxStatusDropped   TxStatus = "dropped"
)

// Terminal reports whether no further events follow this status.
func (s TxStatus) Terminal() bool {
	switch s {
	case TxStatusConfirmed, TxStatusFailed, TxStatusReplaced, TxStatusDropped:
		return true
	}
	return false
}

// StatusEvent is the wire payload delivered once per state transition,
// in order, per transaction hash. Never mutated after creation.
type StatusEvent struct {
	TxHash        string   `json:"tx_hash"`
	ChainID       uint64   `json:"chain_id"`
	Status        TxStatus `json:"status"`
	BlockNumber   uint64   `json:"block_number,omitempty"`
	Confirmations *uint64  `json:"confirmations,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// WatchRequest describes one monitoring task. Immutable once normalized;
// it lives only for the duration of the task and is never persisted.
type WatchRequest struct {
	TxHash        string
	ChainID       uint64
	SubscriberID  string
	Confirmations uint64
	PollInterval  time.Duration
}

const (
	DefaultConfirmations = 1
	DefaultPollInterval  = 5 * time.Second
)

// Normalized returns a copy with defaults applied for zero-valued fields.
func (r WatchRequest) Normalized() WatchRequest {
	if r.Confirmations < 1 {
		r.Confirmations = DefaultConfirmations
	}
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	return r
}

// PriceAttestation is the newest signed price update for one feed, as
// returned by the attestation service. Data is the opaque binary payload
// accepted by the on-chain oracle.
type PriceAttestation struct {
	FeedID      string    `json:"feed_id"`
	Symbol      string    `json:"symbol"`
	Data        []byte    `json:"-"`
	Price       int64     `json:"price"`
	Conf        uint64    `json:"conf"`
	Expo        int32     `json:"expo"`
	PublishTime time.Time `json:"publish_time"`
}

// KeeperHealth is the keeper's health snapshot. LastTxHash changes only when
// a transaction was actually submitted and mined; benign no-op ticks leave it
// and LastError untouched.
type KeeperHealth struct {
	LastTickTime time.Time `json:"last_tick_time"`
	LastTxHash   string    `json:"last_tx_hash,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// KeeperTick is one recorded keeper loop iteration.
type KeeperTick struct {
	StartedAt time.Time `json:"started_at"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Error     string    `json:"error,omitempty"`
	Accounts  int       `json:"accounts"`
}
