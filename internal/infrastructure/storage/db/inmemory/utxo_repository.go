package inmemory

import (
	"context"
	"sync"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
)

type utxoInmemoryStore struct {
	utxosByOwner map[string][]domain.UtxoKey
	utxos        map[string]*domain.Utxo
	lock         *sync.RWMutex
}

type utxoRepository struct {
	store            *utxoInmemoryStore
	chEvents         chan domain.UtxoEvent
	externalChEvents chan domain.UtxoEvent
	chLock           *sync.Mutex
}

func NewUtxoRepository() domain.UtxoRepository {
	return newUtxoRepository()
}

func newUtxoRepository() *utxoRepository {
	return &utxoRepository{
		store: &utxoInmemoryStore{
			utxosByOwner: make(map[string][]domain.UtxoKey),
			utxos:        make(map[string]*domain.Utxo),
			lock:         &sync.RWMutex{},
		},
		chEvents:         make(chan domain.UtxoEvent),
		externalChEvents: make(chan domain.UtxoEvent),
		chLock:           &sync.Mutex{},
	}
}

func (r *utxoRepository) AddUtxos(
	_ context.Context, utxos []*domain.Utxo,
) (int, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.addUtxos(utxos)
}

func (r *utxoRepository) GetUtxosByKey(
	_ context.Context, utxoKeys []domain.UtxoKey,
) ([]*domain.Utxo, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	utxos := make([]*domain.Utxo, 0, len(utxoKeys))
	for _, key := range utxoKeys {
		u, ok := r.store.utxos[key.Hash()]
		if !ok {
			continue
		}
		utxos = append(utxos, u)
	}

	return utxos, nil
}

func (r *utxoRepository) GetAllUtxos(_ context.Context) ([]*domain.Utxo, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	utxos := make([]*domain.Utxo, 0, len(r.store.utxos))
	for _, u := range r.store.utxos {
		utxos = append(utxos, u)
	}
	return utxos, nil
}

func (r *utxoRepository) GetAllUtxosForOwner(
	_ context.Context, owner string,
) ([]*domain.Utxo, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	return r.getUtxosForOwner(owner, false, false), nil
}

func (r *utxoRepository) GetSpendableUtxosForOwner(
	_ context.Context, owner string,
) (map[string][]*domain.Utxo, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	utxos := r.getUtxosForOwner(owner, true, false)
	return domain.GroupUtxosByCurrency(utxos), nil
}

func (r *utxoRepository) GetLockedUtxosForOwner(
	_ context.Context, owner string,
) ([]*domain.Utxo, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	return r.getUtxosForOwner(owner, false, true), nil
}

func (r *utxoRepository) GetBalanceForOwner(
	_ context.Context, owner string,
) (map[string]*domain.Balance, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	utxos := r.getUtxosForOwner(owner, false, false)
	balance := make(map[string]*domain.Balance)
	for _, u := range utxos {
		if u.IsSpent() {
			continue
		}

		if _, ok := balance[u.Currency]; !ok {
			balance[u.Currency] = &domain.Balance{}
		}
		b := balance[u.Currency]
		if u.IsLocked() {
			b.Locked += u.Amount
		} else {
			if u.IsConfirmed() {
				b.Confirmed += u.Amount
			} else {
				b.Unconfirmed += u.Amount
			}
		}
	}

	return balance, nil
}

func (r *utxoRepository) SpendUtxos(
	_ context.Context, utxoKeys []domain.UtxoKey, status domain.UtxoStatus,
) (int, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.spendUtxos(utxoKeys, status)
}

func (r *utxoRepository) ConfirmUtxos(
	_ context.Context, utxoKeys []domain.UtxoKey, status domain.UtxoStatus,
) (int, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.confirmUtxos(utxoKeys, status)
}

func (r *utxoRepository) LockUtxos(
	_ context.Context, utxoKeys []domain.UtxoKey,
	timestamp, expiryTimestamp int64,
) (int, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.lockUtxos(utxoKeys, timestamp, expiryTimestamp)
}

func (r *utxoRepository) UnlockUtxos(
	_ context.Context, utxoKeys []domain.UtxoKey,
) (int, error) {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	return r.unlockUtxos(utxoKeys)
}

func (r *utxoRepository) DeleteUtxosForOwner(
	_ context.Context, owner string,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	keys, ok := r.store.utxosByOwner[owner]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(r.store.utxos, key.Hash())
	}
	delete(r.store.utxosByOwner, owner)
	return nil
}

func (r *utxoRepository) GetEventChannel() chan domain.UtxoEvent {
	return r.externalChEvents
}

func (r *utxoRepository) addUtxos(utxos []*domain.Utxo) (int, error) {
	count := 0
	added := make([]*domain.Utxo, 0, len(utxos))
	for _, u := range utxos {
		if _, ok := r.store.utxos[u.Key().Hash()]; ok {
			continue
		}
		r.store.utxos[u.Key().Hash()] = u
		r.store.utxosByOwner[u.Owner] = append(
			r.store.utxosByOwner[u.Owner], u.Key(),
		)
		added = append(added, u)
		count++
	}

	if count > 0 {
		go r.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoAdded,
			Utxos:     added,
		})
	}

	return count, nil
}

func (r *utxoRepository) getUtxosForOwner(
	owner string, spendableOnly, lockedOnly bool,
) []*domain.Utxo {
	keys := r.store.utxosByOwner[owner]
	if len(keys) == 0 {
		return nil
	}

	utxos := make([]*domain.Utxo, 0, len(keys))
	for _, k := range keys {
		u := r.store.utxos[k.Hash()]

		if spendableOnly {
			if !u.IsLocked() && u.IsConfirmed() && !u.IsSpent() {
				utxos = append(utxos, u)
			}
			continue
		}

		if lockedOnly {
			if u.IsLocked() {
				utxos = append(utxos, u)
			}
			continue
		}
		utxos = append(utxos, u)
	}

	return utxos
}

func (r *utxoRepository) spendUtxos(
	keys []domain.UtxoKey, status domain.UtxoStatus,
) (int, error) {
	count := 0
	spent := make([]*domain.Utxo, 0, len(keys))
	for _, key := range keys {
		utxo, ok := r.store.utxos[key.Hash()]
		if !ok {
			continue
		}

		if utxo.IsSpent() {
			continue
		}

		if err := utxo.Spend(status); err != nil {
			return -1, err
		}

		spent = append(spent, utxo)
		count++
	}

	if count > 0 {
		go r.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoSpent,
			Utxos:     spent,
		})
	}

	return count, nil
}

func (r *utxoRepository) confirmUtxos(
	keys []domain.UtxoKey, status domain.UtxoStatus,
) (int, error) {
	count := 0
	confirmed := make([]*domain.Utxo, 0, len(keys))
	for _, key := range keys {
		utxo, ok := r.store.utxos[key.Hash()]
		if !ok {
			continue
		}

		if utxo.IsConfirmed() {
			continue
		}

		if err := utxo.Confirm(status); err != nil {
			return -1, err
		}

		confirmed = append(confirmed, utxo)
		count++
	}

	if count > 0 {
		go r.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoConfirmed,
			Utxos:     confirmed,
		})
	}

	return count, nil
}

func (r *utxoRepository) lockUtxos(
	keys []domain.UtxoKey, timestamp, expiryTimestamp int64,
) (int, error) {
	count := 0
	locked := make([]*domain.Utxo, 0, len(keys))
	for _, key := range keys {
		utxo, ok := r.store.utxos[key.Hash()]
		if !ok {
			continue
		}

		if utxo.IsLocked() {
			continue
		}

		utxo.Lock(timestamp, expiryTimestamp)
		locked = append(locked, utxo)
		count++
	}

	if count > 0 {
		go r.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoLocked,
			Utxos:     locked,
		})
	}

	return count, nil
}

func (r *utxoRepository) unlockUtxos(keys []domain.UtxoKey) (int, error) {
	count := 0
	unlocked := make([]*domain.Utxo, 0, len(keys))
	for _, key := range keys {
		utxo, ok := r.store.utxos[key.Hash()]
		if !ok {
			continue
		}

		if !utxo.IsLocked() {
			continue
		}

		utxo.Unlock()
		unlocked = append(unlocked, utxo)
		count++
	}

	if count > 0 {
		go r.publishEvent(domain.UtxoEvent{
			EventType: domain.UtxoUnlocked,
			Utxos:     unlocked,
		})
	}

	return count, nil
}

func (r *utxoRepository) publishEvent(event domain.UtxoEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	r.chEvents <- event
	// send over channel without blocking in case nobody is listening.
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *utxoRepository) reset() {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	r.store.utxos = make(map[string]*domain.Utxo)
	r.store.utxosByOwner = make(map[string][]domain.UtxoKey)
}

func (r *utxoRepository) close() {
	close(r.chEvents)
	close(r.externalChEvents)
}
