package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

type txInmemoryStore struct {
	txs  map[string]*domain.Transaction
	lock *sync.RWMutex
}

type txRepository struct {
	store            *txInmemoryStore
	chEvents         chan domain.TransactionEvent
	externalChEvents chan domain.TransactionEvent
	chLock           *sync.Mutex
}

func NewTransactionRepository() domain.TransactionRepository {
	return newTransactionRepository()
}

func newTransactionRepository() *txRepository {
	return &txRepository{
		store: &txInmemoryStore{
			txs:  make(map[string]*domain.Transaction),
			lock: &sync.RWMutex{},
		},
		chEvents:         make(chan domain.TransactionEvent),
		externalChEvents: make(chan domain.TransactionEvent),
		chLock:           &sync.Mutex{},
	}
}

func (r *txRepository) AddTransaction(
	ctx context.Context, tx *domain.Transaction,
) (bool, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.addTx(tx)
}

func (r *txRepository) ConfirmTransaction(
	ctx context.Context,
	txid, blockHash string, blockHeight uint64, blockTime int64,
) (bool, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.confirmTx(txid, blockHash, blockHeight, blockTime)
}

func (r *txRepository) GetTransaction(
	ctx context.Context, txid string,
) (*domain.Transaction, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	return r.getTx(txid)
}

func (r *txRepository) GetAllTransactionsForOwner(
	_ context.Context, owner string,
) ([]*domain.Transaction, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	txs := make([]*domain.Transaction, 0)
	for _, tx := range r.store.txs {
		if tx.Owner == owner {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (r *txRepository) GetEventChannel() chan domain.TransactionEvent {
	return r.externalChEvents
}

func (r *txRepository) addTx(tx *domain.Transaction) (bool, error) {
	if _, ok := r.store.txs[tx.Txid]; ok {
		return false, nil
	}

	r.store.txs[tx.Txid] = tx

	go r.publishEvent(domain.TransactionEvent{
		EventType:   domain.TransactionAdded,
		Transaction: tx,
	})

	return true, nil
}

func (r *txRepository) confirmTx(
	txid string, blockHash string, blockHeight uint64, blockTime int64,
) (bool, error) {
	tx, err := r.getTx(txid)
	if err != nil {
		return false, err
	}

	if tx.IsConfirmed() {
		return false, nil
	}

	tx.Confirm(blockHash, blockHeight, blockTime)

	r.store.txs[txid] = tx

	go r.publishEvent(domain.TransactionEvent{
		EventType:   domain.TransactionConfirmed,
		Transaction: tx,
	})

	return true, nil
}

func (r *txRepository) getTx(txid string) (*domain.Transaction, error) {
	tx, ok := r.store.txs[txid]
	if !ok {
		return nil, fmt.Errorf("transaction not found")
	}
	return tx, nil
}

func (r *txRepository) publishEvent(event domain.TransactionEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	r.chEvents <- event
	// send over channel without blocking in case nobody is listening.
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *txRepository) reset() {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.txs = make(map[string]*domain.Transaction)
}

func (r *txRepository) close() {
	close(r.chEvents)
	close(r.externalChEvents)
}
