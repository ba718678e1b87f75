package domain_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestUtxoKeyHash(t *testing.T) {
	t.Parallel()

	key := domain.UtxoKey{BlkNum: 1000, TxIndex: 2, OIndex: 1}
	hash := key.Hash()
	buf, err := hex.DecodeString(hash)
	require.NoError(t, err)
	require.Len(t, buf, 20)

	require.Equal(t, hash, key.Hash())
	require.NotEqual(t, hash, domain.UtxoKey{BlkNum: 1000, TxIndex: 2, OIndex: 2}.Hash())
}

func TestSpendUtxo(t *testing.T) {
	t.Parallel()

	u := domain.Utxo{}
	require.False(t, u.IsSpent())

	err := u.Spend(domain.UtxoStatus{
		Txid:        hex.EncodeToString(make([]byte, 32)),
		BlockHeight: 1,
		BlockTime:   time.Now().Unix(),
		BlockHash:   hex.EncodeToString(make([]byte, 32)),
	})
	require.NoError(t, err)
	require.True(t, u.IsSpent())
}

func TestConfirmUtxo(t *testing.T) {
	t.Parallel()

	u := domain.Utxo{}
	require.False(t, u.IsConfirmed())

	err := u.Confirm(domain.UtxoStatus{BlockHeight: 1})
	require.NoError(t, err)
	require.True(t, u.IsConfirmed())
}

func TestLockUnlockUtxo(t *testing.T) {
	t.Parallel()

	u := domain.Utxo{}
	require.False(t, u.IsLocked())

	now := time.Now()
	u.Lock(now.Unix(), now.Add(time.Minute).Unix())
	require.True(t, u.IsLocked())
	require.False(t, u.CanUnlock())

	u.Unlock()
	require.True(t, u.IsLocked())

	u.LockExpiryTimestamp = now.Add(-time.Minute).Unix()
	require.True(t, u.CanUnlock())
	u.Unlock()
	require.False(t, u.IsLocked())
}

func TestValidateOrder(t *testing.T) {
	t.Parallel()

	order := domain.Order{
		Owner: alice,
		Payments: []domain.Payment{
			{Owner: bob, Currency: ether, Amount: 10},
		},
		Fee: domain.Fee{Currency: ether, Amount: 1},
	}
	require.NoError(t, order.Validate())

	tests := []struct {
		name          string
		order         domain.Order
		expectedError error
	}{
		{
			name: "missing owner",
			order: domain.Order{
				Payments: order.Payments,
				Fee:      order.Fee,
			},
			expectedError: domain.ErrMissingOrderOwner,
		},
		{
			name: "missing payments",
			order: domain.Order{
				Owner: alice,
				Fee:   order.Fee,
			},
			expectedError: domain.ErrMissingPayments,
		},
		{
			name: "zero payment amount",
			order: domain.Order{
				Owner: alice,
				Payments: []domain.Payment{
					{Owner: bob, Currency: ether, Amount: 0},
				},
				Fee: order.Fee,
			},
			expectedError: domain.ErrInvalidAmount,
		},
		{
			name: "payment amount out of range",
			order: domain.Order{
				Owner: alice,
				Payments: []domain.Payment{
					{Owner: bob, Currency: ether, Amount: domain.MaxAmount + 1},
				},
				Fee: order.Fee,
			},
			expectedError: domain.ErrInvalidAmount,
		},
		{
			name: "fee amount out of range",
			order: domain.Order{
				Owner:    alice,
				Payments: order.Payments,
				Fee:      domain.Fee{Currency: ether, Amount: domain.MaxAmount + 1},
			},
			expectedError: domain.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.order.Validate(), tt.expectedError)
		})
	}

	t.Run("malformed currency", func(t *testing.T) {
		badOrder := order
		badOrder.Payments = []domain.Payment{
			{Owner: bob, Currency: "not-hex", Amount: 10},
		}
		require.Error(t, badOrder.Validate())
	})

	t.Run("ownerless payment allowed", func(t *testing.T) {
		advisory := order
		advisory.Payments = []domain.Payment{
			{Currency: ether, Amount: 10},
		}
		require.NoError(t, advisory.Validate())
	})
}
