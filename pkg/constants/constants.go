// Package constants defines system-wide constants for the WalletGate service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Chain Constants
// ================================================================================

// ChainID identifies a supported blockchain network.
type ChainID string

const (
	// ChainBitcoin is the Bitcoin mainnet
	ChainBitcoin ChainID = "bitcoin"

	// ChainEthereum is the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"

	// ChainArbitrum is the Arbitrum One rollup
	ChainArbitrum ChainID = "arbitrum"

	// ChainOptimism is the Optimism rollup
	ChainOptimism ChainID = "optimism"

	// ChainPolygon is the Polygon PoS chain
	ChainPolygon ChainID = "polygon"

	// ChainBase is the Base rollup
	ChainBase ChainID = "base"

	// ChainAvalanche is the Avalanche C-Chain
	ChainAvalanche ChainID = "avalanche"

	// ChainSolana is the Solana mainnet
	ChainSolana ChainID = "solana"

	// ChainICP is the Internet Computer
	ChainICP ChainID = "icp"
)

// ChainFamily groups chains that share an address format and signing scheme.
type ChainFamily string

const (
	// FamilyBitcoin covers UTXO chains with base58check/bech32 addresses
	FamilyBitcoin ChainFamily = "bitcoin"

	// FamilyEVM covers Ethereum and EVM-compatible chains
	FamilyEVM ChainFamily = "evm"

	// FamilySolana covers ed25519 chains with base58 addresses
	FamilySolana ChainFamily = "solana"

	// FamilyICP covers Internet Computer principal identifiers
	FamilyICP ChainFamily = "icp"
)

// ================================================================================
// Wallet Constants
// ================================================================================

// WalletSource identifies how an address entered the registry.
type WalletSource string

const (
	// WalletSourceManual is an address typed in by the user
	WalletSourceManual WalletSource = "manual"

	// WalletSourceExtension is an address obtained from a browser-extension provider
	WalletSourceExtension WalletSource = "extension"

	// WalletSourceMobile is an address obtained from a mobile signer
	WalletSourceMobile WalletSource = "mobile"

	// WalletSourceHardware is an address obtained from a hardware signer
	WalletSourceHardware WalletSource = "hardware"
)

// ================================================================================
// Challenge Constants
// ================================================================================

// ChallengeStatus represents the lifecycle state of an authorization challenge.
type ChallengeStatus string

const (
	// ChallengeStatusIssued indicates the challenge is awaiting a signature
	ChallengeStatusIssued ChallengeStatus = "issued"

	// ChallengeStatusConsumed indicates the challenge produced an authorization
	ChallengeStatusConsumed ChallengeStatus = "consumed"

	// ChallengeStatusExpired indicates the challenge passed its expiry unsigned
	ChallengeStatusExpired ChallengeStatus = "expired"
)

const (
	// ChallengeTTL is the fixed lifetime of an authorization challenge.
	// Deliberately short and not configurable per call.
	ChallengeTTL = 5 * time.Minute

	// SessionTokenTTL is the lifetime of a post-authorization session token
	SessionTokenTTL = 30 * time.Minute
)

// ================================================================================
// Key Derivation Constants
// ================================================================================

const (
	// PBKDF2Iterations is the iteration count for password-derived keys
	PBKDF2Iterations = 100_000

	// KeySaltSize is the size in bytes of the persisted PBKDF2 salt
	KeySaltSize = 16

	// AESKeySize is the size in bytes of the AES-256 key
	AESKeySize = 32

	// GCMNonceSize is the size in bytes of the AES-GCM nonce
	GCMNonceSize = 12
)

// ================================================================================
// Storage Key Constants
// ================================================================================

const (
	// StoreKeyPrefix namespaces every encrypted record in the raw backend
	StoreKeyPrefix = "secure_"

	// StoreKeySalt is the well-known backend key holding the PBKDF2 salt
	StoreKeySalt = "walletgate_key_salt"

	// StoreKeyAnonKey is the well-known backend key holding the anonymous-mode
	// raw key material (base64). Anyone with store access can read it.
	StoreKeyAnonKey = "walletgate_anon_key"

	// StoreKeyMigrationDone marks the plaintext-to-encrypted migration as
	// complete so restarts skip it
	StoreKeyMigrationDone = "walletgate_migration_v1"

	// StoreKeyAuditSecret is the well-known backend key holding the audit
	// trail HMAC key (base64)
	StoreKeyAuditSecret = "walletgate_audit_secret"

	// StoreKeyWallet is the logical key of the MultiChainWallet snapshot
	StoreKeyWallet = "multi_chain_wallet"

	// StoreKeyPermissions is the logical key of the user permission policy
	StoreKeyPermissions = "user_permissions"

	// StoreKeySpending is the logical key of the daily spending ledger
	StoreKeySpending = "daily_spending"
)

// ================================================================================
// Cache and Refresh Constants
// ================================================================================

const (
	// BalanceCacheTTL is how long a fetched balance stays fresh
	BalanceCacheTTL = 60 * time.Second

	// RefreshBatchSize is the number of chains refreshed concurrently.
	// Upstream-rate-limit backpressure, not an optimization.
	RefreshBatchSize = 3

	// RefreshBatchDelay is the pause between refresh batches
	RefreshBatchDelay = 500 * time.Millisecond

	// ChallengeSweepInterval is how often expired challenges are swept
	ChallengeSweepInterval = 1 * time.Minute
)

// ================================================================================
// Rate Limiting Constants
// ================================================================================

const (
	// ChallengeRateLimitPerMinute caps challenge issuance per signing address
	ChallengeRateLimitPerMinute = 10

	// ChallengeRateBurst is the token bucket burst size
	ChallengeRateBurst = 10
)

// ================================================================================
// Error Code Constants
// ================================================================================

// ErrorCode classifies every failure the subsystem can surface.
type ErrorCode string

const (
	// ErrCodeKeyUnsupportedEnvironment indicates the platform lacks a secure RNG or AEAD
	ErrCodeKeyUnsupportedEnvironment ErrorCode = "key_unsupported_environment"

	// ErrCodeKeyNotInitialized indicates vault use before Initialize
	ErrCodeKeyNotInitialized ErrorCode = "key_not_initialized"

	// ErrCodeKeyDecryptionFailed indicates a GCM authentication failure
	ErrCodeKeyDecryptionFailed ErrorCode = "key_decryption_failed"

	// ErrCodeStoreSerialization indicates a record could not be encoded or decoded
	ErrCodeStoreSerialization ErrorCode = "store_serialization"

	// ErrCodeStoreBackend indicates raw backend I/O failure
	ErrCodeStoreBackend ErrorCode = "store_backend"

	// ErrCodeValidationBadFormat indicates an address failed its chain validator
	ErrCodeValidationBadFormat ErrorCode = "validation_bad_format"

	// ErrCodeValidationUnknownChain indicates a chain outside the registry
	ErrCodeValidationUnknownChain ErrorCode = "validation_unknown_chain"

	// ErrCodeConnectSourceUnavailable indicates the wallet provider is absent
	ErrCodeConnectSourceUnavailable ErrorCode = "connect_source_unavailable"

	// ErrCodeConnectUserRejected indicates the user declined the connection
	ErrCodeConnectUserRejected ErrorCode = "connect_user_rejected"

	// ErrCodeSignRejected indicates the signer declined or failed to sign
	ErrCodeSignRejected ErrorCode = "sign_rejected"

	// ErrCodeFetchFailed indicates a balance oracle failure
	ErrCodeFetchFailed ErrorCode = "fetch_failed"

	// ErrCodeAuthNotFound indicates an unknown challenge id
	ErrCodeAuthNotFound ErrorCode = "auth_not_found"

	// ErrCodeAuthExpired indicates a challenge past its expiry
	ErrCodeAuthExpired ErrorCode = "auth_expired"

	// ErrCodeAuthAlreadyConsumed indicates a second use of a consumed challenge
	ErrCodeAuthAlreadyConsumed ErrorCode = "auth_already_consumed"

	// ErrCodeAuthInvalidSignature indicates signature verification failure
	ErrCodeAuthInvalidSignature ErrorCode = "auth_invalid_signature"

	// ErrCodeAuthUnsupportedChain indicates no verifier exists for the chain family
	ErrCodeAuthUnsupportedChain ErrorCode = "auth_unsupported_chain"

	// ErrCodeAuthRateLimited indicates challenge issuance was throttled
	ErrCodeAuthRateLimited ErrorCode = "auth_rate_limited"

	// ErrCodeSessionInvalid indicates a session token failed validation
	ErrCodeSessionInvalid ErrorCode = "session_invalid"

	// ErrCodeGateMissingWallets indicates required chains without registry entries
	ErrCodeGateMissingWallets ErrorCode = "gate_missing_wallets"

	// ErrCodeGateChainNotAllowed indicates a chain outside the permission policy
	ErrCodeGateChainNotAllowed ErrorCode = "gate_chain_not_allowed"

	// ErrCodeGateLimitExceeded indicates the daily spending cap would be exceeded
	ErrCodeGateLimitExceeded ErrorCode = "gate_limit_exceeded"

	// ErrCodeExecutionFailed indicates the strategy executor reported failure
	ErrCodeExecutionFailed ErrorCode = "execution_failed"

	// ErrCodeInvalidRequest indicates a malformed API request
	ErrCodeInvalidRequest ErrorCode = "invalid_request"

	// ErrCodeNotFound indicates an unknown API resource or route
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeDuplicateRequest indicates a replayed idempotency key
	ErrCodeDuplicateRequest ErrorCode = "duplicate_request"

	// ErrCodeInternal indicates an unclassified internal error
	ErrCodeInternal ErrorCode = "internal_error"
)

// ================================================================================
// Event Type Constants
// ================================================================================

// WalletEventType represents wallet registry change notifications.
type WalletEventType string

const (
	// EventWalletAdded fires on a new address upsert
	EventWalletAdded WalletEventType = "wallet_added"

	// EventWalletUpdated fires when an existing entry changes
	EventWalletUpdated WalletEventType = "wallet_updated"

	// EventWalletConnected fires when an entry flips to connected
	EventWalletConnected WalletEventType = "wallet_connected"

	// EventWalletDisconnected fires when an entry flips to disconnected
	EventWalletDisconnected WalletEventType = "wallet_disconnected"

	// EventWalletRemoved fires when an entry is deleted
	EventWalletRemoved WalletEventType = "wallet_removed"

	// EventWalletCleared fires when the whole wallet is wiped
	EventWalletCleared WalletEventType = "wallet_cleared"

	// EventBalanceRefreshed fires after a successful balance fetch
	EventBalanceRefreshed WalletEventType = "balance_refreshed"
)

// AuditEventType represents different types of auditable authorization events.
type AuditEventType string

const (
	// EventTypeChallengeIssued represents challenge creation events
	EventTypeChallengeIssued AuditEventType = "challenge_issued"

	// EventTypeChallengeConsumed represents successful signature submissions
	EventTypeChallengeConsumed AuditEventType = "challenge_consumed"

	// EventTypeChallengeDenied represents rejected signature submissions
	EventTypeChallengeDenied AuditEventType = "challenge_denied"

	// EventTypeActivation represents strategy activation events
	EventTypeActivation AuditEventType = "strategy_activation"

	// EventTypeLimitRejected represents permission or spending limit rejections
	EventTypeLimitRejected AuditEventType = "limit_rejected"
)

// ================================================================================
// Service Configuration Constants
// ================================================================================

const (
	// ServiceName identifies this service in logs, traces, and tokens
	ServiceName = "walletgate"

	// ServiceVersion is the reported build version
	ServiceVersion = "0.1.0"

	// DefaultServicePort is the default HTTP service port
	DefaultServicePort = 8084

	// DefaultRequestTimeout is the default request timeout
	DefaultRequestTimeout = 10 * time.Second

	// DefaultShutdownTimeout is the graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// IdempotencyRetention is how long accepted idempotency keys are remembered
	IdempotencyRetention = 24 * time.Hour

	// DefaultMaxDailyExecution is the default daily spending cap in USD
	DefaultMaxDailyExecution = 10_000.0

	// SpendingRetentionDays is how many day buckets the spending ledger keeps
	SpendingRetentionDays = 7
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"

	// LogLevelFatal indicates critical errors that cause service termination
	LogLevelFatal LogLevel = "fatal"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyUserID is the key for the acting user in context
	ContextKeyUserID ContextKey = "user_id"

	// ContextKeyClientIP is the key for client IP address in context
	ContextKeyClientIP ContextKey = "client_ip"

	// ContextKeySession is the key for a validated auth session in context
	ContextKeySession ContextKey = "session"
)
