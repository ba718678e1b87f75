package postgresdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

const (
	insertTxQuery = `
		INSERT INTO transactions (
			txid, raw, owner, block_hash, block_height, block_time
		) VALUES ($1, $2, $3, $4, $5, $6)`

	selectTxQuery = `
		SELECT txid, raw, owner, block_hash, block_height, block_time
		FROM transactions`

	confirmTxQuery = `
		UPDATE transactions
		SET block_hash = $2, block_height = $3, block_time = $4
		WHERE txid = $1`
)

type txRepositoryPg struct {
	pgxPool          *pgxpool.Pool
	chLock           *sync.Mutex
	chEvents         chan domain.TransactionEvent
	externalChEvents chan domain.TransactionEvent
}

func NewTxRepositoryPgImpl(pgxPool *pgxpool.Pool) domain.TransactionRepository {
	return newTxRepositoryPgImpl(pgxPool)
}

func newTxRepositoryPgImpl(pgxPool *pgxpool.Pool) *txRepositoryPg {
	return &txRepositoryPg{
		pgxPool:          pgxPool,
		chLock:           &sync.Mutex{},
		chEvents:         make(chan domain.TransactionEvent),
		externalChEvents: make(chan domain.TransactionEvent),
	}
}

func (t *txRepositoryPg) AddTransaction(
	ctx context.Context, tx *domain.Transaction,
) (bool, error) {
	if _, err := t.pgxPool.Exec(
		ctx, insertTxQuery,
		tx.Txid, tx.Raw, tx.Owner,
		tx.BlockHash, int64(tx.BlockHeight), tx.BlockTime,
	); err != nil {
		if pqErr, ok := err.(*pgconn.PgError); pqErr != nil && ok &&
			pqErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}

	go t.publishEvent(domain.TransactionEvent{
		EventType:   domain.TransactionAdded,
		Transaction: tx,
	})

	return true, nil
}

func (t *txRepositoryPg) ConfirmTransaction(
	ctx context.Context, txid, blockHash string, blockHeight uint64,
	blockTime int64,
) (bool, error) {
	tx, err := t.getTx(ctx, txid)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, fmt.Errorf("transaction not found")
	}

	if tx.IsConfirmed() {
		return false, nil
	}

	tx.Confirm(blockHash, blockHeight, blockTime)

	if _, err := t.pgxPool.Exec(
		ctx, confirmTxQuery,
		tx.Txid, tx.BlockHash, int64(tx.BlockHeight), tx.BlockTime,
	); err != nil {
		return false, err
	}

	go t.publishEvent(domain.TransactionEvent{
		EventType:   domain.TransactionConfirmed,
		Transaction: tx,
	})

	return true, nil
}

func (t *txRepositoryPg) GetTransaction(
	ctx context.Context, txid string,
) (*domain.Transaction, error) {
	tx, err := t.getTx(ctx, txid)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction not found")
	}
	return tx, nil
}

func (t *txRepositoryPg) GetAllTransactionsForOwner(
	ctx context.Context, owner string,
) ([]*domain.Transaction, error) {
	rows, err := t.pgxPool.Query(
		ctx, selectTxQuery+` WHERE owner = $1`, owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return txs, nil
}

func (t *txRepositoryPg) GetEventChannel() chan domain.TransactionEvent {
	return t.externalChEvents
}

func (t *txRepositoryPg) getTx(
	ctx context.Context, txid string,
) (*domain.Transaction, error) {
	row := t.pgxPool.QueryRow(ctx, selectTxQuery+` WHERE txid = $1`, txid)

	tx, err := scanTx(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

func (t *txRepositoryPg) publishEvent(event domain.TransactionEvent) {
	t.chLock.Lock()
	defer t.chLock.Unlock()

	t.chEvents <- event

	// send over channel without blocking in case nobody is listening.
	select {
	case t.externalChEvents <- event:
	default:
	}
}

func (t *txRepositoryPg) reset(ctx context.Context) {
	//nolint
	t.pgxPool.Exec(ctx, `DELETE FROM transactions`)
}

func (t *txRepositoryPg) close() {
	close(t.chEvents)
	close(t.externalChEvents)
}

func scanTx(row scannable) (*domain.Transaction, error) {
	var blockHeight int64
	tx := &domain.Transaction{}
	if err := row.Scan(
		&tx.Txid, &tx.Raw, &tx.Owner,
		&tx.BlockHash, &blockHeight, &tx.BlockTime,
	); err != nil {
		return nil, err
	}

	tx.BlockHeight = uint64(blockHeight)
	return tx, nil
}
