package domain

import (
	"fmt"
	"sort"
	"strings"
)

var (
	ErrTooManyInputs    = fmt.Errorf("number of inputs exceeds the input slots of a transaction")
	ErrTooManyOutputs   = fmt.Errorf("number of outputs exceeds the output slots of a transaction")
	ErrEmptyTransaction = fmt.Errorf("transaction resolved to no inputs")

	ErrMissingOrderOwner = fmt.Errorf("missing order owner")
	ErrMissingPayments   = fmt.Errorf("missing order payments")
	ErrInvalidAmount     = fmt.Errorf("amount must be a positive integer")

	ErrInvalidMaxInputs  = fmt.Errorf("max inputs must be a positive integer")
	ErrInvalidMaxOutputs = fmt.Errorf("max outputs must be a positive integer")
	ErrInvalidMergeCap   = fmt.Errorf("merge cap must be a non-negative integer")
)

// MissingAmount reports how short a single currency is after selection.
// Field names and types are part of the contract surfaced to API consumers
// and must not change.
type MissingAmount struct {
	Currency string `json:"currency"`
	Missing  uint64 `json:"missing"`
}

// InsufficientFundsError is returned when one or more currencies' required
// amount could not be covered by the available utxos.
type InsufficientFundsError struct {
	Missing []MissingAmount
}

func (e *InsufficientFundsError) Error() string {
	missing := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		missing = append(missing, fmt.Sprintf("%s (missing %d)", m.Currency, m.Missing))
	}
	sort.Strings(missing)
	return fmt.Sprintf("insufficient funds for currencies: %s", strings.Join(missing, ", "))
}
