// Package commands contains business operations that modify system state.
// Implements the Command pattern for write operations in the CQRS
// architecture. All commands follow a consistent pattern: validation,
// transaction management, persistence and after-commit notification.
package commands

import (
	"orderflow/internal/core/ports"
)

// Handlers receive their transaction scope through these aliases so the
// package reads self-contained; the contracts live in ports.
type (
	// UnitOfWork is the transactional boundary a command executes in.
	UnitOfWork = ports.UnitOfWork

	// UnitOfWorkFactory creates one UnitOfWork per command execution.
	UnitOfWorkFactory = ports.UnitOfWorkFactory
)
