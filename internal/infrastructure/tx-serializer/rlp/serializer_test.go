package rlp_serializer_test

import (
	"strings"
	"testing"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	rlp_serializer "github.com/javimaravillas/elixir-omg/internal/infrastructure/tx-serializer/rlp"
	"github.com/stretchr/testify/require"
)

var (
	alice = "0x" + strings.Repeat("aa", 20)
	bob   = "0x" + strings.Repeat("bb", 20)
	ether = "0x" + strings.Repeat("00", 20)
)

func TestSerialize(t *testing.T) {
	serializer := rlp_serializer.NewRLPTxSerializer()

	draft := &domain.TransactionDraft{
		Inputs: []*domain.Utxo{
			{
				UtxoKey:  domain.UtxoKey{BlkNum: 1000, TxIndex: 1, OIndex: 0},
				Owner:    alice,
				Currency: ether,
				Amount:   100,
			},
		},
		Outputs: []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 90},
			{Owner: alice, Currency: ether, Amount: 10},
		},
		Fee: domain.Fee{Currency: ether, Amount: 0},
	}

	rawBytes, signingHash, err := serializer.Serialize(draft)
	require.NoError(t, err)
	require.NotEmpty(t, rawBytes)
	require.Len(t, signingHash, 32)

	t.Run("deterministic", func(t *testing.T) {
		againRaw, againHash, err := serializer.Serialize(draft)
		require.NoError(t, err)
		require.Equal(t, rawBytes, againRaw)
		require.Equal(t, signingHash, againHash)
	})

	t.Run("sensitive to content", func(t *testing.T) {
		other := *draft
		other.Outputs = []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 91},
			{Owner: alice, Currency: ether, Amount: 9},
		}
		_, otherHash, err := serializer.Serialize(&other)
		require.NoError(t, err)
		require.NotEqual(t, signingHash, otherHash)
	})

	t.Run("no-op for advisory drafts", func(t *testing.T) {
		advisory := *draft
		advisory.Outputs = []domain.Payment{
			{Currency: ether, Amount: 100},
		}
		rawBytes, signingHash, err := serializer.Serialize(&advisory)
		require.NoError(t, err)
		require.Nil(t, rawBytes)
		require.Nil(t, signingHash)
	})
}
