package backend

import (
	"context"
	"time"

	"github.com/showbox88/GTPinput/internal/core"
	"github.com/showbox88/GTPinput/internal/services"
)

// Store is everything the binaries need from a persistence backend
type Store interface {
	services.RuleStore
	services.OwnerLister
	services.LedgerStore

	CreateRule(ctx context.Context, rule core.RecurringRule) (int64, error)
	SetRuleActive(ctx context.Context, id int64, active bool) error
	UpdateRule(ctx context.Context, rule core.RecurringRule) error
	DeleteRule(ctx context.Context, id int64) error
	ListEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	// Store is the raw backend
	Store Store

	// Ledger writes through Store and publishes created entries when AMQP
	// is configured
	Ledger services.LedgerStore

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Location is used to read stored calendar days back
	Location *time.Location

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	RulesFile string

	// Optional publisher
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
