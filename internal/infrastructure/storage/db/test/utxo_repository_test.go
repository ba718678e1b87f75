package db_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
	dbbadger "github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/badger"
	"github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/inmemory"
)

var (
	newUtxos          []*domain.Utxo
	utxoKeys          []domain.UtxoKey
	balanceByCurrency map[string]*domain.Balance
	txid              = hex.EncodeToString(make([]byte, 32))
)

func TestUtxoRepository(t *testing.T) {
	repositories, err := newUtxoRepositories(
		func(repoType string) ports.UtxoEventHandler {
			return func(event domain.UtxoEvent) {
				t.Logf("received event from %s repo: %+v\n", repoType, event)
			}
		},
	)
	require.NoError(t, err)

	for name, repo := range repositories {
		t.Run(name, func(t *testing.T) {
			testUtxoRepository(t, repo)
		})
	}
}

func testUtxoRepository(t *testing.T, repo domain.UtxoRepository) {
	newUtxos, utxoKeys, balanceByCurrency = randomUtxosForOwner(owner)
	testAddAndGetUtxos(t, repo)

	testGetBalanceForOwner(t, repo)

	testConfirmUtxos(t, repo)

	testLockUtxos(t, repo)

	testUnlockUtxos(t, repo)

	testSpendUtxos(t, repo)

	testDeleteUtxosForOwner(t, repo)
}

func testAddAndGetUtxos(t *testing.T, repo domain.UtxoRepository) {
	t.Run("add_utxos and get_utxos", func(t *testing.T) {
		count, err := repo.AddUtxos(ctx, newUtxos)
		require.NoError(t, err)
		require.Equal(t, len(newUtxos), count)

		count, err = repo.AddUtxos(ctx, newUtxos)
		require.NoError(t, err)
		require.Zero(t, count)

		utxos, err := repo.GetAllUtxos(ctx)
		require.NoError(t, err)
		require.Len(t, utxos, len(newUtxos))

		utxos, err = repo.GetAllUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, utxos, len(newUtxos))

		utxos, err = repo.GetAllUtxosForOwner(ctx, wrongOwner)
		require.NoError(t, err)
		require.Empty(t, utxos)

		spendable, err := repo.GetSpendableUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, spendable)

		utxos, err = repo.GetLockedUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, utxos)

		utxos, err = repo.GetUtxosByKey(ctx, utxoKeys)
		require.NoError(t, err)
		require.Len(t, utxos, len(newUtxos))

		otherKeys := []domain.UtxoKey{randomKey()}
		utxos, err = repo.GetUtxosByKey(ctx, otherKeys)
		require.NoError(t, err)
		require.Empty(t, utxos)

		allKeys := append(utxoKeys, otherKeys...)
		utxos, err = repo.GetUtxosByKey(ctx, allKeys)
		require.NoError(t, err)
		require.Len(t, utxos, len(newUtxos))
	})
}

func testGetBalanceForOwner(t *testing.T, repo domain.UtxoRepository) {
	t.Run("get_balance_for_owner", func(t *testing.T) {
		utxoBalance, err := repo.GetBalanceForOwner(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, utxoBalance)
		for currency, balance := range utxoBalance {
			require.Exactly(t, *balanceByCurrency[currency], *balance)
		}

		utxoBalance, err = repo.GetBalanceForOwner(ctx, wrongOwner)
		require.NoError(t, err)
		require.Empty(t, utxoBalance)
	})
}

func testConfirmUtxos(t *testing.T, repo domain.UtxoRepository) {
	t.Run("confirm_utxos", func(t *testing.T) {
		status := domain.UtxoStatus{BlockHeight: 1}
		count, err := repo.ConfirmUtxos(ctx, utxoKeys, status)
		require.NoError(t, err)
		require.Equal(t, len(newUtxos), count)

		count, err = repo.ConfirmUtxos(ctx, utxoKeys, status)
		require.NoError(t, err)
		require.Zero(t, count)

		spendable, err := repo.GetSpendableUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, flatten(spendable), len(newUtxos))

		utxoBalance, err := repo.GetBalanceForOwner(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, utxoBalance)
		for currency, balance := range utxoBalance {
			prevBalance := balanceByCurrency[currency]
			require.Equal(t, prevBalance.Unconfirmed, balance.Confirmed)
			require.Equal(t, prevBalance.Confirmed, balance.Unconfirmed)
			require.Equal(t, prevBalance.Locked, balance.Locked)
		}
	})
}

func testLockUtxos(t *testing.T, repo domain.UtxoRepository) {
	t.Run("lock_utxos", func(t *testing.T) {
		count, err := repo.LockUtxos(ctx, utxoKeys, time.Now().Unix(), 0)
		require.NoError(t, err)
		require.Equal(t, len(newUtxos), count)

		count, err = repo.LockUtxos(ctx, utxoKeys, time.Now().Unix(), 0)
		require.NoError(t, err)
		require.Zero(t, count)

		utxos, err := repo.GetLockedUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, utxos, len(newUtxos))

		spendable, err := repo.GetSpendableUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, spendable)

		utxoBalance, err := repo.GetBalanceForOwner(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, utxoBalance)
		for currency, balance := range utxoBalance {
			prevBalance := balanceByCurrency[currency]
			require.Zero(t, balance.Confirmed)
			require.Zero(t, balance.Unconfirmed)
			require.Equal(t, prevBalance.Unconfirmed, balance.Locked)
		}
	})
}

func testUnlockUtxos(t *testing.T, repo domain.UtxoRepository) {
	t.Run("unlock_utxos", func(t *testing.T) {
		count, err := repo.UnlockUtxos(ctx, utxoKeys)
		require.NoError(t, err)
		require.Equal(t, len(newUtxos), count)

		count, err = repo.UnlockUtxos(ctx, utxoKeys)
		require.NoError(t, err)
		require.Zero(t, count)

		utxos, err := repo.GetLockedUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, utxos)

		spendable, err := repo.GetSpendableUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, flatten(spendable), len(newUtxos))
	})
}

func testSpendUtxos(t *testing.T, repo domain.UtxoRepository) {
	t.Run("spend_utxos", func(t *testing.T) {
		status := domain.UtxoStatus{Txid: txid, BlockHeight: 1}
		count, err := repo.SpendUtxos(ctx, utxoKeys, status)
		require.NoError(t, err)
		require.Equal(t, len(newUtxos), count)

		count, err = repo.SpendUtxos(ctx, utxoKeys, status)
		require.NoError(t, err)
		require.Zero(t, count)

		spendable, err := repo.GetSpendableUtxosForOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, spendable)

		utxoBalance, err := repo.GetBalanceForOwner(ctx, owner)
		require.NoError(t, err)
		require.Empty(t, utxoBalance)
	})
}

func testDeleteUtxosForOwner(t *testing.T, repo domain.UtxoRepository) {
	t.Run("delete_utxos_for_owner", func(t *testing.T) {
		// Deleting for an owner with no utxos must leave the table untouched.
		err := repo.DeleteUtxosForOwner(ctx, wrongOwner)
		require.NoError(t, err)

		utxos, err := repo.GetAllUtxos(ctx)
		require.NoError(t, err)
		require.Len(t, utxos, len(newUtxos))

		err = repo.DeleteUtxosForOwner(ctx, owner)
		require.NoError(t, err)

		utxos, err = repo.GetAllUtxos(ctx)
		require.NoError(t, err)
		require.Empty(t, utxos)
	})
}

func flatten(utxosByCurrency map[string][]*domain.Utxo) []*domain.Utxo {
	utxos := make([]*domain.Utxo, 0)
	for _, group := range utxosByCurrency {
		utxos = append(utxos, group...)
	}
	return utxos
}

func newUtxoRepositories(
	handlerFactory func(repoType string) ports.UtxoEventHandler,
) (map[string]domain.UtxoRepository, error) {
	inmemoryRepoManager := inmemory.NewRepoManager()
	badgerRepoManager, err := dbbadger.NewRepoManager("", nil)
	if err != nil {
		return nil, err
	}
	handlers := []ports.UtxoEventHandler{
		handlerFactory("badger"), handlerFactory("inmemory"),
	}

	repoManagers := []ports.RepoManager{badgerRepoManager, inmemoryRepoManager}

	for i, handler := range handlers {
		repoManager := repoManagers[i]
		repoManager.RegisterHandlerForUtxoEvent(domain.UtxoAdded, handler)
		repoManager.RegisterHandlerForUtxoEvent(domain.UtxoConfirmed, handler)
		repoManager.RegisterHandlerForUtxoEvent(domain.UtxoLocked, handler)
		repoManager.RegisterHandlerForUtxoEvent(domain.UtxoUnlocked, handler)
		repoManager.RegisterHandlerForUtxoEvent(domain.UtxoSpent, handler)
	}

	return map[string]domain.UtxoRepository{
		"inmemory": inmemoryRepoManager.UtxoRepository(),
		"badger":   badgerRepoManager.UtxoRepository(),
	}, nil
}
