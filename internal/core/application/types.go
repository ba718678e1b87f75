package application

import (
	"strings"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
	greedy_selector "github.com/javimaravillas/elixir-omg/internal/infrastructure/fund-selector/greedy"
)

const (
	FundSelectionStrategyGreedy = iota
)

var (
	fundSelectorByType = map[int]FundSelectorFactory{
		FundSelectionStrategyGreedy: greedy_selector.NewGreedyFundSelector,
	}

	DefaultFundSelectorFactory FundSelectorFactory = greedy_selector.NewGreedyFundSelector
)

// FundSelectorFactory builds a fund selector bound to the given protocol
// constants.
type FundSelectorFactory func(params domain.Params) ports.FundSelector

type TransactionInfo domain.Transaction

type BalanceInfo map[string]*domain.Balance

type Utxos []*domain.Utxo

func (u Utxos) Keys() []domain.UtxoKey {
	keys := make([]domain.UtxoKey, 0, len(u))
	for _, utxo := range u {
		keys = append(keys, utxo.Key())
	}
	return keys
}

type UtxoKeys []domain.UtxoKey

func (u UtxoKeys) String() string {
	str := make([]string, 0, len(u))
	for _, key := range u {
		str = append(str, key.String())
	}
	return strings.Join(str, ", ")
}
