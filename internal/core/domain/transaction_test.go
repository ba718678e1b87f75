package domain_test

import (
	"strings"
	"testing"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/stretchr/testify/require"
)

var (
	alice = "0x" + strings.Repeat("aa", 20)
	bob   = "0x" + strings.Repeat("bb", 20)
	ether = "0x" + strings.Repeat("00", 20)
	omg   = "0x" + strings.Repeat("11", 20)
)

func TestAssembleTransaction(t *testing.T) {
	params := domain.DefaultParams()

	t.Run("positive change paid back to the order owner", func(t *testing.T) {
		order := newOrder(alice, []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 90},
		}, domain.Fee{Currency: ether, Amount: 10})
		selected := map[string][]*domain.Utxo{
			ether: newUtxos(alice, ether, 70, 50),
		}

		draft, err := domain.AssembleTransaction(selected, order, params)
		require.NoError(t, err)
		require.Len(t, draft.Inputs, 2)
		require.Len(t, draft.Outputs, 2)
		require.Equal(t, domain.Payment{
			Owner: alice, Currency: ether, Amount: 20,
		}, draft.Outputs[1])
		require.False(t, draft.IsAdvisory())
		require.Empty(t, draft.RawBytes)
		require.Empty(t, draft.SigningHash)
	})

	t.Run("exact cover produces no change output", func(t *testing.T) {
		order := newOrder(alice, []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 90},
		}, domain.Fee{Currency: ether, Amount: 10})
		selected := map[string][]*domain.Utxo{
			ether: newUtxos(alice, ether, 70, 30),
		}

		draft, err := domain.AssembleTransaction(selected, order, params)
		require.NoError(t, err)
		require.Len(t, draft.Outputs, 1)
	})

	t.Run("change computed per currency", func(t *testing.T) {
		order := newOrder(alice, []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 50},
			{Owner: bob, Currency: omg, Amount: 100},
		}, domain.Fee{Currency: ether, Amount: 5})
		selected := map[string][]*domain.Utxo{
			ether: newUtxos(alice, ether, 60),
			omg:   newUtxos(alice, omg, 120),
		}

		draft, err := domain.AssembleTransaction(selected, order, params)
		require.NoError(t, err)
		require.Len(t, draft.Outputs, 4)
		require.ElementsMatch(t, []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 50},
			{Owner: bob, Currency: omg, Amount: 100},
			{Owner: alice, Currency: ether, Amount: 5},
			{Owner: alice, Currency: omg, Amount: 20},
		}, draft.Outputs)
	})

	t.Run("too many outputs", func(t *testing.T) {
		payments := make([]domain.Payment, 0, 4)
		for i := 0; i < 4; i++ {
			payments = append(payments, domain.Payment{
				Owner: bob, Currency: ether, Amount: 10,
			})
		}
		order := newOrder(alice, payments, domain.Fee{Currency: omg, Amount: 1})
		selected := map[string][]*domain.Utxo{
			ether: newUtxos(alice, ether, 40),
			omg:   newUtxos(alice, omg, 5),
		}

		draft, err := domain.AssembleTransaction(selected, order, params)
		require.ErrorIs(t, err, domain.ErrTooManyOutputs)
		require.Nil(t, draft)
	})

	t.Run("empty transaction", func(t *testing.T) {
		order := newOrder(alice, []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 10},
		}, domain.Fee{Currency: ether, Amount: 0})

		draft, err := domain.AssembleTransaction(
			map[string][]*domain.Utxo{}, order, params,
		)
		require.ErrorIs(t, err, domain.ErrEmptyTransaction)
		require.Nil(t, draft)
	})

	t.Run("ownerless payment makes the draft advisory", func(t *testing.T) {
		order := newOrder(alice, []domain.Payment{
			{Currency: ether, Amount: 90},
		}, domain.Fee{Currency: ether, Amount: 10})
		selected := map[string][]*domain.Utxo{
			ether: newUtxos(alice, ether, 100),
		}

		draft, err := domain.AssembleTransaction(selected, order, params)
		require.NoError(t, err)
		require.True(t, draft.IsAdvisory())
	})
}

func TestConfirmTransaction(t *testing.T) {
	tx := &domain.Transaction{Txid: "deadbeef", Owner: alice}
	require.False(t, tx.IsConfirmed())

	tx.Confirm("aabbcc", 12, 1234567890)
	require.True(t, tx.IsConfirmed())
	require.Equal(t, uint64(12), tx.BlockHeight)

	tx.Confirm("ddeeff", 13, 1234567891)
	require.Equal(t, "aabbcc", tx.BlockHash)
}

func newOrder(
	owner string, payments []domain.Payment, fee domain.Fee,
) domain.Order {
	return domain.Order{
		Owner:    owner,
		Payments: payments,
		Fee:      fee,
	}
}

func newUtxos(owner, currency string, amounts ...uint64) []*domain.Utxo {
	utxos := make([]*domain.Utxo, 0, len(amounts))
	for i, amount := range amounts {
		utxos = append(utxos, &domain.Utxo{
			UtxoKey: domain.UtxoKey{
				BlkNum:  uint64(1000 * (i + 1)),
				TxIndex: uint32(i),
				OIndex:  0,
			},
			Owner:    owner,
			Currency: currency,
			Amount:   amount,
		})
	}
	return utxos
}
