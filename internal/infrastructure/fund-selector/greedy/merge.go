package greedy_selector

import (
	"fmt"
	"sort"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

// mergeCandidates ranks the unselected utxos that are good dust-absorption
// candidates: only currencies already touched by the transaction are
// considered, currencies with the most unselected utxos come first (so that
// merges make the biggest dent in the owner's future utxo count) and, within
// a currency, the smallest amounts come first. Every currency contributes at
// most capPerCurrency candidates.
func mergeCandidates(
	selected map[string][]*domain.Utxo,
	available map[string][]*domain.Utxo, capPerCurrency int,
) []*domain.Utxo {
	selectedHashes := make(map[string]struct{})
	for _, utxos := range selected {
		for _, utxo := range utxos {
			selectedHashes[utxo.Hash()] = struct{}{}
		}
	}

	currencies := make([]string, 0, len(selected))
	for currency := range selected {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	groups := make([][]*domain.Utxo, 0, len(currencies))
	for _, currency := range currencies {
		group := make([]*domain.Utxo, 0, len(available[currency]))
		for _, utxo := range available[currency] {
			if _, ok := selectedHashes[utxo.Hash()]; ok {
				continue
			}
			group = append(group, utxo)
		}
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Amount < group[j].Amount
		})
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i]) > len(groups[j])
	})

	candidates := make([]*domain.Utxo, 0)
	for _, group := range groups {
		if len(group) > capPerCurrency {
			group = group[:capPerCurrency]
		}
		candidates = append(candidates, group...)
	}
	return candidates
}

// expandSelection prepends the ranked candidates to their currency's
// selection, head first, until the total number of selected utxos reaches
// the input slots of a transaction or the candidates run out.
// Candidates are guaranteed by mergeCandidates to belong to an already
// selected currency: a violation denotes an upstream logic bug and is
// surfaced as a descriptive internal error rather than recovered silently.
func expandSelection(
	selected map[string][]*domain.Utxo,
	candidates []*domain.Utxo, maxInputs int,
) (map[string][]*domain.Utxo, error) {
	count := countUtxos(selected)
	if count >= maxInputs {
		return selected, nil
	}

	for _, candidate := range candidates {
		if count == maxInputs {
			break
		}
		utxos, ok := selected[candidate.Currency]
		if !ok {
			return nil, fmt.Errorf(
				"%w: %s", ErrUnselectedMergeCurrency, candidate.Currency,
			)
		}
		selected[candidate.Currency] = append(
			[]*domain.Utxo{candidate}, utxos...,
		)
		count++
	}
	return selected, nil
}
