package greedy_selector

import (
	"fmt"
	"sort"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
)

var (
	ErrUnsortedUtxos = fmt.Errorf(
		"error on utxos: every per-currency list must be sorted in " +
			"descending order of amount",
	)
	ErrUnselectedMergeCurrency = fmt.Errorf(
		"internal error: merge candidate belongs to a currency missing " +
			"from the selection",
	)
)

// selectionEntry is the outcome of the greedy walk for a single currency.
// A variance <= 0 means the needed amount is covered (0 exactly), while a
// positive variance means the currency is short by that amount.
type selectionEntry struct {
	currency string
	variance int64
	utxos    []*domain.Utxo
}

type selector struct {
	params domain.Params
}

// NewGreedyFundSelector is the factory for a ports.FundSelector picking, for
// every currency required by an order, the first descending utxos covering
// the needed amount, then opportunistically folding in low-value utxos of
// the already-selected currencies until the input slots are exhausted.
// The strategy is not globally optimal but is deterministic and stable for a
// given input ordering, which downstream change computation depends on.
func NewGreedyFundSelector(params domain.Params) ports.FundSelector {
	return &selector{params}
}

func (s *selector) SelectFunds(
	available map[string][]*domain.Utxo,
	payments []domain.Payment, fee domain.Fee,
) (map[string][]*domain.Utxo, error) {
	if err := validateSorting(available); err != nil {
		return nil, err
	}

	needed, err := neededFunds(payments, fee)
	if err != nil {
		return nil, err
	}

	entries := selectUtxos(available, needed)

	selected, err := checkSufficiency(entries)
	if err != nil {
		return nil, err
	}

	if countUtxos(selected) > s.params.MaxInputs {
		return nil, domain.ErrTooManyInputs
	}

	candidates := mergeCandidates(
		selected, available, s.params.MergeCapPerCurrency,
	)
	return expandSelection(selected, candidates, s.params.MaxInputs)
}

// neededFunds returns the amount owed per currency by the given payments,
// with the fee folded into its own currency. Per-currency totals above
// domain.MaxAmount would wrap the signed variance accumulator, so they are
// rejected upfront.
func neededFunds(
	payments []domain.Payment, fee domain.Fee,
) (map[string]uint64, error) {
	funds := make(map[string]uint64)
	add := func(currency string, amount uint64) error {
		total := funds[currency] + amount
		if total < funds[currency] || total > domain.MaxAmount {
			return domain.ErrInvalidAmount
		}
		funds[currency] = total
		return nil
	}

	for _, payment := range payments {
		if err := add(payment.Currency, payment.Amount); err != nil {
			return nil, err
		}
	}
	if err := add(fee.Currency, fee.Amount); err != nil {
		return nil, err
	}
	return funds, nil
}

// selectUtxos runs the greedy walk for every needed currency. Currencies are
// processed in lexicographic order so that repeated runs on identical inputs
// always produce identical outputs.
func selectUtxos(
	available map[string][]*domain.Utxo, needed map[string]uint64,
) []selectionEntry {
	currencies := make([]string, 0, len(needed))
	for currency := range needed {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	entries := make([]selectionEntry, 0, len(currencies))
	for _, currency := range currencies {
		utxos, variance := selectForCurrency(
			available[currency], needed[currency],
		)
		entries = append(entries, selectionEntry{currency, variance, utxos})
	}
	return entries
}

// selectForCurrency selects the utxos covering the needed amount for a
// single currency. A single utxo whose amount equals the needed one is
// always preferred, favoring change-free transactions. Otherwise the list is
// walked in its given descending order, accumulating utxos until the
// remaining need drops to zero or below, or the list is exhausted.
func selectForCurrency(
	utxos []*domain.Utxo, needed uint64,
) ([]*domain.Utxo, int64) {
	for _, utxo := range utxos {
		if utxo.Amount == needed {
			return []*domain.Utxo{utxo}, 0
		}
	}

	selected := make([]*domain.Utxo, 0, len(utxos))
	variance := int64(needed)
	for _, utxo := range utxos {
		if variance <= 0 {
			break
		}
		selected = append(selected, utxo)
		variance -= int64(utxo.Amount)
	}
	return selected, variance
}

// checkSufficiency filters out the entries still short of funds. If any
// exist, the whole selection is rejected with the structured report of the
// missing amounts, otherwise the chosen utxos are returned grouped by
// currency, discarding variances.
func checkSufficiency(
	entries []selectionEntry,
) (map[string][]*domain.Utxo, error) {
	missing := make([]domain.MissingAmount, 0)
	for _, entry := range entries {
		if entry.variance > 0 {
			missing = append(missing, domain.MissingAmount{
				Currency: entry.currency,
				Missing:  uint64(entry.variance),
			})
		}
	}
	if len(missing) > 0 {
		return nil, &domain.InsufficientFundsError{Missing: missing}
	}

	selected := make(map[string][]*domain.Utxo)
	for _, entry := range entries {
		selected[entry.currency] = entry.utxos
	}
	return selected, nil
}

// validateSorting asserts the documented precondition on the available utxo
// set. The greedy walk silently returns wrong selections on unsorted input,
// so a violation is surfaced as an explicit error instead.
func validateSorting(available map[string][]*domain.Utxo) error {
	for _, utxos := range available {
		for i := 0; i+1 < len(utxos); i++ {
			if utxos[i].Amount < utxos[i+1].Amount {
				return ErrUnsortedUtxos
			}
		}
	}
	return nil
}

func countUtxos(selected map[string][]*domain.Utxo) int {
	count := 0
	for _, utxos := range selected {
		count += len(utxos)
	}
	return count
}
