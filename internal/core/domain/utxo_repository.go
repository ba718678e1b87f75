package domain

import (
	"context"
)

const (
	UtxoAdded UtxoEventType = iota
	UtxoConfirmed
	UtxoLocked
	UtxoUnlocked
	UtxoSpent
)

var (
	utxoTypeString = map[UtxoEventType]string{
		UtxoAdded:     "UtxoAdded",
		UtxoConfirmed: "UtxoConfirmed",
		UtxoLocked:    "UtxoLocked",
		UtxoUnlocked:  "UtxoUnlocked",
		UtxoSpent:     "UtxoSpent",
	}
)

type UtxoEventType int

func (t UtxoEventType) String() string {
	return utxoTypeString[t]
}

// UtxoEvent holds info about an event occured within the repository.
type UtxoEvent struct {
	EventType UtxoEventType
	Utxos     []*Utxo
}

// UtxoRepository is the abstraction for any kind of database intended to
// persist Utxos.
type UtxoRepository interface {
	// AddUtxos adds the provided utxos to the repository by preventing
	// duplicates.
	// Generates a UtxoAdded event if successfull.
	AddUtxos(ctx context.Context, utxos []*Utxo) (int, error)
	// GetUtxosByKey returns the utxos identified by the given keys.
	GetUtxosByKey(ctx context.Context, utxoKeys []UtxoKey) ([]*Utxo, error)
	// GetAllUtxos returns the entire UTXO set, included those locked or
	// already spent.
	GetAllUtxos(ctx context.Context) ([]*Utxo, error)
	// GetAllUtxosForOwner returns the list of all utxos for the given owner.
	GetAllUtxosForOwner(ctx context.Context, owner string) ([]*Utxo, error)
	// GetSpendableUtxosForOwner returns the unspent, confirmed and unlocked
	// utxos of the given owner, grouped by currency. Every per-currency list
	// is sorted in strictly descending order of amount, the documented
	// precondition of the selection engine, established here at the storage
	// boundary.
	GetSpendableUtxosForOwner(ctx context.Context, owner string) (map[string][]*Utxo, error)
	// GetLockedUtxosForOwner returns the list of all currently locked utxos
	// for the given owner.
	GetLockedUtxosForOwner(ctx context.Context, owner string) ([]*Utxo, error)
	// GetBalanceForOwner returns the confirmed, unconfirmed and locked
	// balances per each currency for the given owner.
	GetBalanceForOwner(ctx context.Context, owner string) (map[string]*Balance, error)
	// SpendUtxos updates the status of the given list of utxos to "spent".
	// Generates a UtxoSpent event if successfull.
	SpendUtxos(ctx context.Context, utxoKeys []UtxoKey, status UtxoStatus) (int, error)
	// ConfirmUtxos updates the status of the given list of utxos to
	// "confirmed". Generates a UtxoConfirmed event if successfull.
	ConfirmUtxos(ctx context.Context, utxoKeys []UtxoKey, status UtxoStatus) (int, error)
	// LockUtxos updates the status of the given list of utxos to "locked".
	// Generates a UtxoLocked event if successfull.
	LockUtxos(ctx context.Context, utxoKeys []UtxoKey, timestamp, expiryTimestamp int64) (int, error)
	// UnlockUtxos updates the status of the given list of utxos to
	// "unlocked". Generates a UtxoUnlocked event if successfull.
	UnlockUtxos(ctx context.Context, utxoKeys []UtxoKey) (int, error)
	// DeleteUtxosForOwner deletes every utxo associated to the given owner
	// from the repository.
	DeleteUtxosForOwner(ctx context.Context, owner string) error
	// GetEventChannel returns the channel of UtxoEvents.
	GetEventChannel() chan UtxoEvent
}
