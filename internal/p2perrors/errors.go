package p2perrors

import (
	"errors"
)

var (
	// ErrDeserialization represents any sort of error deserializing a transaction or message
	ErrDeserialization = errors.New("error during deserialization")

	// ErrSerialization represents any sort of error serializing a transaction or message
	ErrSerialization = errors.New("error during serialization")

	// ErrInvalidTransaction represents a transaction that failed consensus verification
	ErrInvalidTransaction = errors.New("transaction failed verification")

	// ErrCoinbaseTransaction represents a coinbase transaction relayed as a regular transaction
	ErrCoinbaseTransaction = errors.New("coinbase transaction cannot be relayed")

	// ErrRecentlyRejected represents a transaction that was rejected within the rejection window
	ErrRecentlyRejected = errors.New("transaction was recently rejected")

	// ErrDuplicateTransaction represents a transaction that is already known to the memory pool
	ErrDuplicateTransaction = errors.New("transaction already in memory pool")

	// ErrVerification represents a failure of the verifier itself, as opposed to an invalid transaction
	ErrVerification = errors.New("transaction verification failed to complete")

	// ErrMemPool represents an error inserting, cleansing or storing the memory pool
	ErrMemPool = errors.New("memory pool error")

	// ErrLedger represents an error reading or writing ledger state
	ErrLedger = errors.New("ledger state error")

	// ErrInvalidSignature represents a transaction whose signature does not verify
	ErrInvalidSignature = errors.New("invalid transaction signature")

	// ErrLocalRPC represents an error occurred during a local rpc
	ErrLocalRPC = errors.New("local RPC error")

	// ErrPeerRPC represents an error occurred during a peer rpc
	ErrPeerRPC = errors.New("peer RPC error")

	// ErrPeerRPCTimeout represents a peer rpc timed out
	ErrPeerRPCTimeout = errors.New("peer RPC request timed out")

	// ErrUnknownPayload represents a peer message with an unrecognized payload type
	ErrUnknownPayload = errors.New("unknown payload type")

	// ErrOutboundQueueFull represents a send that was dropped because the outbound queue is full
	ErrOutboundQueueFull = errors.New("outbound queue is full")
)
