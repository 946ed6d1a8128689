package backend

import (
	"context"

	"budgets/internal/amqp"
	"budgets/internal/storage"
)

type CleanupFunc func() error

// BackendResult is what a Factory hands to the binaries.
type BackendResult struct {
	Store storage.Store
	// Publisher is nil when change propagation is disabled.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
