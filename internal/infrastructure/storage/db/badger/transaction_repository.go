package dbbadger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

type txRepository struct {
	store            *badgerhold.Store
	chEvents         chan domain.TransactionEvent
	externalChEvents chan domain.TransactionEvent
	lock             *sync.Mutex

	log func(format string, a ...interface{})
}

func NewTransactionRepository(store *badgerhold.Store) domain.TransactionRepository {
	return newTransactionRepository(store)
}

func newTransactionRepository(store *badgerhold.Store) *txRepository {
	chEvents := make(chan domain.TransactionEvent)
	externalChEvents := make(chan domain.TransactionEvent)
	lock := &sync.Mutex{}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("transaction repository: %s", format)
		log.Debugf(format, a...)
	}
	return &txRepository{store, chEvents, externalChEvents, lock, logFn}
}

func (r *txRepository) AddTransaction(
	ctx context.Context, tx *domain.Transaction,
) (bool, error) {
	done, err := r.insertTx(ctx, tx)
	if err != nil {
		return false, err
	}

	if done {
		go r.publishEvent(domain.TransactionEvent{
			EventType:   domain.TransactionAdded,
			Transaction: tx,
		})
	}

	return done, nil
}

func (r *txRepository) ConfirmTransaction(
	ctx context.Context, txid, blockHash string, blockHeight uint64,
	blockTime int64,
) (bool, error) {
	tx, err := r.getTx(ctx, txid)
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

	if err := r.updateTx(ctx, tx); err != nil {
		return false, err
	}

	go r.publishEvent(domain.TransactionEvent{
		EventType:   domain.TransactionConfirmed,
		Transaction: tx,
	})

	return true, nil
}

func (r *txRepository) GetTransaction(
	ctx context.Context, txid string,
) (*domain.Transaction, error) {
	tx, err := r.getTx(ctx, txid)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction not found")
	}
	return tx, nil
}

func (r *txRepository) GetAllTransactionsForOwner(
	ctx context.Context, owner string,
) ([]*domain.Transaction, error) {
	query := badgerhold.Where("Owner").Eq(owner)
	return r.findTxs(ctx, query)
}

func (r *txRepository) GetEventChannel() chan domain.TransactionEvent {
	return r.externalChEvents
}

func (r *txRepository) insertTx(
	ctx context.Context, tx *domain.Transaction,
) (bool, error) {
	var err error
	if ctx.Value("tx") != nil {
		t := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxInsert(t, tx.Txid, *tx)
	} else {
		err = r.store.Insert(tx.Txid, *tx)
	}
	if err != nil {
		if err == badgerhold.ErrKeyExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *txRepository) updateTx(
	ctx context.Context, tx *domain.Transaction,
) error {
	if ctx.Value("tx") != nil {
		t := ctx.Value("tx").(*badger.Txn)
		return r.store.TxUpdate(t, tx.Txid, *tx)
	}
	return r.store.Update(tx.Txid, *tx)
}

func (r *txRepository) getTx(
	ctx context.Context, txid string,
) (*domain.Transaction, error) {
	var tx domain.Transaction
	var err error
	if ctx.Value("tx") != nil {
		t := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(t, txid, &tx)
	} else {
		err = r.store.Get(txid, &tx)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (r *txRepository) findTxs(
	ctx context.Context, query *badgerhold.Query,
) ([]*domain.Transaction, error) {
	var list []domain.Transaction
	var err error
	if ctx.Value("tx") != nil {
		t := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(t, &list, query)
	} else {
		err = r.store.Find(&list, query)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	txs := make([]*domain.Transaction, 0, len(list))
	for i := range list {
		txs = append(txs, &list[i])
	}
	return txs, nil
}

func (r *txRepository) publishEvent(event domain.TransactionEvent) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.log("publish event %s", event.EventType)
	r.chEvents <- event

	// send over channel without blocking in case nobody is listening.
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *txRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *txRepository) close() {
	r.store.Close()
	close(r.chEvents)
	close(r.externalChEvents)
}
