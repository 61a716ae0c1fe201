// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Flush-related constants
const (
	// CacheIdleThreshold is how long a conversation may sit idle in the live
	// store before a flush pass moves it to the archive
	CacheIdleThreshold = 30 * time.Minute

	// FlushInterval is the cadence of the flush scheduler
	FlushInterval = 10 * time.Minute
)

// Redis key names
const (
	// ConversationKeyPrefix prefixes every live conversation document key
	ConversationKeyPrefix = "conversation:"

	// ConversationKeyPattern matches all live conversation document keys
	ConversationKeyPattern = "conversation:*"

	// AgentOnlineSetKey is the set of CSR agents currently online
	AgentOnlineSetKey = "csr:online"

	// AgentLoadHashKey maps agent UID to assigned-conversation count
	AgentLoadHashKey = "csr:load"

	// AgentProfileHashKey maps agent UID to a JSON profile blob
	AgentProfileHashKey = "csr:profile"

	// AgentPresenceKeyPrefix prefixes per-agent heartbeat keys
	AgentPresenceKeyPrefix = "csr:presence:"
)

// Agent presence constants
const (
	// AgentPresenceTTL is how long an agent stays online without a heartbeat
	AgentPresenceTTL = 5 * time.Minute
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)

// Message constants
const (
	// MaxMessageLength is the maximum allowed message length
	MaxMessageLength = 10000
)

// Roles carried in JWT claims
const (
	// RoleAgent identifies a CSR agent token
	RoleAgent = "agent"

	// RoleCustomer identifies an end-user token
	RoleCustomer = "customer"

	// RoleAdmin identifies an administrative token
	RoleAdmin = "admin"
)
