package ports

import (
	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

type UtxoEventHandler func(event domain.UtxoEvent)
type TxEventHandler func(event domain.TransactionEvent)

// RepoManager is the abstraction for any kind of service intended to manage
// domain repositories implementations of the same concrete type.
type RepoManager interface {
	// UtxoRepository returns the utxo repository.
	UtxoRepository() domain.UtxoRepository
	// TransactionRepository returns the tx repository.
	TransactionRepository() domain.TransactionRepository

	// RegisterHandlerForUtxoEvent registers an handler function, executed
	// whenever the given event type occurs.
	RegisterHandlerForUtxoEvent(
		eventType domain.UtxoEventType, handler UtxoEventHandler,
	)
	// RegisterHandlerForTxEvent registers an handler function, executed
	// whenever the given event type occurs.
	RegisterHandlerForTxEvent(
		eventType domain.TransactionEventType, handler TxEventHandler,
	)

	// Reset brings all the repos to their initial state by deleting any
	// persisted data.
	Reset()

	// Close closes the connection with all concrete repositories
	// implementations.
	Close()
}
