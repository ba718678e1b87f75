package ports

import "github.com/javimaravillas/elixir-omg/internal/core/domain"

// FundSelector is the abstraction for any kind of service intended to return
// the subset of the given utxos funding every payment of an order, based on
// a specific strategy.
type FundSelector interface {
	// SelectFunds returns the utxos funding the given payments and fee,
	// grouped by currency.
	// The available utxos are expected to be grouped by currency and sorted
	// in strictly descending order of amount within each group.
	// It returns a *domain.InsufficientFundsError if any currency cannot be
	// covered, or domain.ErrTooManyInputs if the mandatory selection already
	// exceeds the input slots of a transaction.
	SelectFunds(
		available map[string][]*domain.Utxo,
		payments []domain.Payment, fee domain.Fee,
	) (map[string][]*domain.Utxo, error)
}
