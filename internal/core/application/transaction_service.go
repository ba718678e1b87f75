package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
)

// TransactionService is responsible for the operations related to the funds
// of a spender:
//   - Get the balance or the utxo set of an owner address.
//   - Draft a transaction funding a payment order: select the minimal utxo set covering every required currency, opportunistically fold in low-value utxos to shrink the owner's future utxo footprint, compute change outputs and hand the draft to the serialization collaborator. The selected utxos are temporary locked to prevent double spending them.
//   - Find the funds that would cover an order without locking or persisting anything.
//   - Get info about a previously drafted transaction.
//
// The service registers 1 handler for the following utxo event:
//   - domain.UtxoLocked - whenever one or more utxos are locked, the service spawns a so-called unlocker, a goroutine waiting for X seconds before unlocking them if necessary. The operation is just skipped if the utxos have been spent meanwhile.
//
// The service guarantees that any locked utxo is eventually unlocked ASAP
// after the waiting time expires.
type TransactionService struct {
	repoManager        ports.RepoManager
	txSerializer       ports.TxSerializer
	fundSelector       ports.FundSelector
	params             domain.Params
	utxoExpiryDuration time.Duration

	log func(format string, a ...interface{})
}

func NewTransactionService(
	repoManager ports.RepoManager, txSerializer ports.TxSerializer,
	fundSelectionStrategy int, params domain.Params,
	utxoExpiryDuration time.Duration,
) (*TransactionService, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol params: %w", err)
	}
	fundSelectorFactory := DefaultFundSelectorFactory
	if factory, ok := fundSelectorByType[fundSelectionStrategy]; ok {
		fundSelectorFactory = factory
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("transaction service: %s", format)
		log.Debugf(format, a...)
	}
	svc := &TransactionService{
		repoManager, txSerializer, fundSelectorFactory(params), params,
		utxoExpiryDuration, logFn,
	}
	svc.registerHandlerForUtxoEvents()

	return svc, nil
}

// CreateTransaction drafts a transaction funding the given order.
// A draft whose payments all have an owner is serialized and its selected
// inputs locked for the configured expiry duration; a draft with one or more
// ownerless payments is advisory: nothing is locked nor serialized.
func (ts *TransactionService) CreateTransaction(
	ctx context.Context, order domain.Order,
) (*domain.TransactionDraft, error) {
	draft, err := ts.draftTransaction(ctx, order)
	if err != nil {
		return nil, err
	}

	rawBytes, signingHash, err := ts.txSerializer.Serialize(draft)
	if err != nil {
		return nil, err
	}
	draft.RawBytes = rawBytes
	draft.SigningHash = signingHash

	if draft.IsAdvisory() {
		ts.log(
			"found %d input(s) for advisory order of %s",
			len(draft.Inputs), order.Owner,
		)
		return draft, nil
	}

	now := time.Now()
	keys := Utxos(draft.Inputs).Keys()
	count, err := ts.repoManager.UtxoRepository().LockUtxos(
		ctx, keys, now.Unix(), now.Add(ts.utxoExpiryDuration).Unix(),
	)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		ts.log(
			"locked %d utxo(s) for owner %s (%s)",
			count, order.Owner, UtxoKeys(keys),
		)
	}

	txid := hex.EncodeToString(draft.SigningHash)
	if _, err := ts.repoManager.TransactionRepository().AddTransaction(
		ctx, &domain.Transaction{
			Txid:  txid,
			Raw:   hex.EncodeToString(draft.RawBytes),
			Owner: order.Owner,
		},
	); err != nil {
		ts.log("error while persisting draft %s: %s", txid, err)
	}

	return draft, nil
}

// FindFunds selects and assembles a draft for the given order without any
// side effect: nothing is serialized, locked nor persisted. It answers the
// question "which utxos would fund this order" and leaves the utxo set
// untouched.
func (ts *TransactionService) FindFunds(
	ctx context.Context, order domain.Order,
) (*domain.TransactionDraft, error) {
	draft, err := ts.draftTransaction(ctx, order)
	if err != nil {
		return nil, err
	}

	ts.log(
		"found %d input(s) for order of %s", len(draft.Inputs), order.Owner,
	)
	return draft, nil
}

func (ts *TransactionService) draftTransaction(
	ctx context.Context, order domain.Order,
) (*domain.TransactionDraft, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	available, err := ts.repoManager.UtxoRepository().GetSpendableUtxosForOwner(
		ctx, order.Owner,
	)
	if err != nil {
		return nil, err
	}

	selected, err := ts.fundSelector.SelectFunds(
		available, order.Payments, order.Fee,
	)
	if err != nil {
		return nil, err
	}

	return domain.AssembleTransaction(selected, order, ts.params)
}

// GetTransactionInfo returns info about a previously drafted transaction.
func (ts *TransactionService) GetTransactionInfo(
	ctx context.Context, txid string,
) (*TransactionInfo, error) {
	tx, err := ts.repoManager.TransactionRepository().GetTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	return (*TransactionInfo)(tx), nil
}

// GetBalance returns the balance of the given owner, grouped by currency.
func (ts *TransactionService) GetBalance(
	ctx context.Context, owner string,
) (BalanceInfo, error) {
	if err := domain.ValidateAddress(owner); err != nil {
		return nil, err
	}
	return ts.repoManager.UtxoRepository().GetBalanceForOwner(ctx, owner)
}

// ListUtxos returns the spendable and locked utxo sets of the given owner.
func (ts *TransactionService) ListUtxos(
	ctx context.Context, owner string,
) (spendable, locked Utxos, err error) {
	if err := domain.ValidateAddress(owner); err != nil {
		return nil, nil, err
	}

	spendableByCurrency, err := ts.repoManager.UtxoRepository().
		GetSpendableUtxosForOwner(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	for _, utxos := range spendableByCurrency {
		spendable = append(spendable, utxos...)
	}

	locked, err = ts.repoManager.UtxoRepository().GetLockedUtxosForOwner(
		ctx, owner,
	)
	if err != nil {
		return nil, nil, err
	}
	return spendable, locked, nil
}

func (ts *TransactionService) registerHandlerForUtxoEvents() {
	ts.repoManager.RegisterHandlerForUtxoEvent(
		domain.UtxoLocked, func(event domain.UtxoEvent) {
			keys := Utxos(event.Utxos).Keys()
			ts.spawnUtxoUnlocker(keys)
		},
	)
}

// spawnUtxoUnlocker groups the locked utxos identified by the given keys by
// their locking timestamps, and then creates a goroutine for each group in
// order to unlock the utxos if they are still locked when their expiration
// time comes.
func (ts *TransactionService) spawnUtxoUnlocker(utxoKeys []domain.UtxoKey) {
	ctx := context.Background()
	utxos, _ := ts.repoManager.UtxoRepository().GetUtxosByKey(ctx, utxoKeys)

	utxosByLockTimestamp := make(map[int64][]domain.UtxoKey)
	for _, u := range utxos {
		utxosByLockTimestamp[u.LockTimestamp] = append(
			utxosByLockTimestamp[u.LockTimestamp], u.Key(),
		)
	}

	for timestamp := range utxosByLockTimestamp {
		keys := utxosByLockTimestamp[timestamp]
		unlockTime := ts.utxoExpiryDuration - time.Since(time.Unix(timestamp, 0))
		if unlockTime <= 0 {
			unlockTime = time.Millisecond
		}
		t := time.NewTicker(unlockTime)
		go func(keys []domain.UtxoKey, t *time.Ticker) {
			ts.log("spawning unlocker for utxo(s) %s", UtxoKeys(keys))
			ts.log(fmt.Sprintf(
				"utxo(s) will be eventually unlocked in ~%.0f seconds",
				math.Round(unlockTime.Seconds()/10)*10,
			))

			for range t.C {
				utxos, _ := ts.repoManager.UtxoRepository().GetUtxosByKey(
					ctx, keys,
				)
				utxosToUnlock := make([]domain.UtxoKey, 0, len(utxos))
				for _, u := range utxos {
					if !u.IsSpent() && u.IsLocked() {
						utxosToUnlock = append(utxosToUnlock, u.Key())
					}
				}

				if len(utxosToUnlock) == 0 {
					t.Stop()
					return
				}

				// The ticker is reset to a short duration to keep retrying
				// to unlock the still-locked utxos as soon as possible.
				count, err := ts.repoManager.UtxoRepository().UnlockUtxos(
					ctx, utxosToUnlock,
				)
				if err != nil {
					ts.log(
						"error while unlocking utxo(s) %s: %s",
						UtxoKeys(utxosToUnlock), err,
					)
					t.Reset(time.Second)
					continue
				}

				if count > 0 {
					ts.log(
						"unlocked %d utxo(s) (%s)",
						count, UtxoKeys(utxosToUnlock),
					)
				}
				t.Stop()
				return
			}
		}(keys, t)
	}
}
