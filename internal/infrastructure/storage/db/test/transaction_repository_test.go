package db_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
	dbbadger "github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/badger"
	"github.com/javimaravillas/elixir-omg/internal/infrastructure/storage/db/inmemory"
)

func TestTransactionRepository(t *testing.T) {
	repositories, err := newTransactionRepositories(
		func(repoType string) ports.TxEventHandler {
			return func(event domain.TransactionEvent) {
				t.Logf(
					"received event from %s repo: {EventType: %s, Transaction: "+
						"{Txid: %s, Owner: %s}}\n", repoType, event.EventType,
					event.Transaction.Txid, event.Transaction.Owner,
				)
			}
		},
	)
	require.NoError(t, err)

	for name, repo := range repositories {
		t.Run(name, func(t *testing.T) {
			testTransactionRepository(t, repo)
		})
	}
}

func testTransactionRepository(t *testing.T, repo domain.TransactionRepository) {
	newTx := randomTx(owner)
	txid := newTx.Txid
	wrongTxid := randomHex(32)

	t.Run("add_transaction", func(t *testing.T) {
		done, err := repo.AddTransaction(ctx, newTx)
		require.NoError(t, err)
		require.True(t, done)

		done, err = repo.AddTransaction(ctx, newTx)
		require.NoError(t, err)
		require.False(t, done)
	})

	t.Run("get_transaction", func(t *testing.T) {
		tx, err := repo.GetTransaction(ctx, txid)
		require.NoError(t, err)
		require.NotNil(t, tx)
		require.Exactly(t, *newTx, *tx)

		tx, err = repo.GetTransaction(ctx, wrongTxid)
		require.Error(t, err)
		require.Nil(t, tx)
	})

	t.Run("get_all_transactions_for_owner", func(t *testing.T) {
		txs, err := repo.GetAllTransactionsForOwner(ctx, owner)
		require.NoError(t, err)
		require.Len(t, txs, 1)

		txs, err = repo.GetAllTransactionsForOwner(ctx, wrongOwner)
		require.NoError(t, err)
		require.Empty(t, txs)
	})

	t.Run("confirm_transaction", func(t *testing.T) {
		blockHash := randomHex(32)
		blockHeight := uint64(randomIntInRange(100, 1000))
		blockTime := time.Now().Unix()

		done, err := repo.ConfirmTransaction(
			ctx, txid, blockHash, blockHeight, blockTime,
		)
		require.NoError(t, err)
		require.True(t, done)

		done, err = repo.ConfirmTransaction(
			ctx, txid, blockHash, blockHeight, blockTime,
		)
		require.NoError(t, err)
		require.False(t, done)

		tx, err := repo.GetTransaction(ctx, txid)
		require.NoError(t, err)
		require.NotNil(t, tx)
		require.True(t, tx.IsConfirmed())
		require.Equal(t, blockHash, tx.BlockHash)
		require.Equal(t, blockHeight, tx.BlockHeight)
		require.Equal(t, blockTime, tx.BlockTime)

		done, err = repo.ConfirmTransaction(
			ctx, wrongTxid, blockHash, blockHeight, blockTime,
		)
		require.Error(t, err)
		require.False(t, done)
	})
}

func newTransactionRepositories(
	handlerFactory func(repoType string) ports.TxEventHandler,
) (map[string]domain.TransactionRepository, error) {
	inmemoryRepoManager := inmemory.NewRepoManager()
	badgerRepoManager, err := dbbadger.NewRepoManager("", nil)
	if err != nil {
		return nil, err
	}
	handlers := []ports.TxEventHandler{
		handlerFactory("badger"), handlerFactory("inmemory"),
	}

	repoManagers := []ports.RepoManager{badgerRepoManager, inmemoryRepoManager}

	for i, handler := range handlers {
		repoManager := repoManagers[i]
		repoManager.RegisterHandlerForTxEvent(domain.TransactionAdded, handler)
		repoManager.RegisterHandlerForTxEvent(domain.TransactionConfirmed, handler)
	}

	return map[string]domain.TransactionRepository{
		"inmemory": inmemoryRepoManager.TransactionRepository(),
		"badger":   badgerRepoManager.TransactionRepository(),
	}, nil
}
