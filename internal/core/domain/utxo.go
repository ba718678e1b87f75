package domain

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// UtxoKey is the position of an output in the ledger, composed by the number
// of the block including its transaction, the index of the transaction within
// the block and the index of the output within the transaction.
type UtxoKey struct {
	BlkNum  uint64
	TxIndex uint32
	OIndex  uint32
}

// Hash returns the content hash of the position, used for cheap
// set-membership comparisons of utxos.
func (k UtxoKey) Hash() string {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], k.BlkNum)
	binary.BigEndian.PutUint32(buf[8:12], k.TxIndex)
	binary.BigEndian.PutUint32(buf[12:], k.OIndex)
	return hex.EncodeToString(btcutil.Hash160(buf))
}

func (k UtxoKey) String() string {
	return fmt.Sprintf("{%d: %d: %d}", k.BlkNum, k.TxIndex, k.OIndex)
}

// UtxoStatus holds info about the ledger transaction that spent or confirmed
// a utxo.
type UtxoStatus struct {
	Txid        string
	BlockHeight uint64
	BlockTime   int64
	BlockHash   string
}

// Balance holds info about the balance of a list of utxos with the same
// currency.
type Balance struct {
	Confirmed   uint64
	Unconfirmed uint64
	Locked      uint64
}

func (b *Balance) Total() uint64 {
	return b.Confirmed + b.Unconfirmed + b.Locked
}

// Utxo is the data structure representing an unspent output of the ledger
// with extra info like whether it is spent/unspent, confirmed/unconfirmed or
// locked/unlocked.
// The selection engine treats utxos as immutable, it only reads and
// references them, while their lifecycle is owned by the storage layer.
type Utxo struct {
	UtxoKey
	Owner               string
	Currency            string
	Amount              uint64
	LockTimestamp       int64
	LockExpiryTimestamp int64
	SpentStatus         UtxoStatus
	ConfirmedStatus     UtxoStatus
}

// IsSpent returns whether the utxo have been spent.
func (u *Utxo) IsSpent() bool {
	return u.SpentStatus != UtxoStatus{}
}

// IsConfirmed returns whether the utxo is confirmed.
func (u *Utxo) IsConfirmed() bool {
	return u.ConfirmedStatus != UtxoStatus{}
}

// IsLocked returns whether the utxo is locked.
func (u *Utxo) IsLocked() bool {
	return u.LockTimestamp > 0
}

// CanUnlock returns whether a locked utxo can be unlocked.
func (u *Utxo) CanUnlock() bool {
	if !u.IsLocked() {
		return true
	}
	return time.Now().After(time.Unix(u.LockExpiryTimestamp, 0))
}

// Key returns the UtxoKey of the current utxo.
func (u *Utxo) Key() UtxoKey {
	return u.UtxoKey
}

// Spend marks the utxo as spent.
func (u *Utxo) Spend(status UtxoStatus) error {
	if u.IsSpent() {
		return nil
	}

	emptyStatus := UtxoStatus{}
	if status == emptyStatus {
		return fmt.Errorf("status must not be empty")
	}
	if status.Txid == "" {
		return fmt.Errorf("missing txid")
	}
	if status.BlockHeight == 0 && status.BlockTime == 0 && status.BlockHash == "" {
		return fmt.Errorf("missing block info")
	}
	u.SpentStatus = status
	u.LockTimestamp = 0
	return nil
}

// Confirm marks the utxo as confirmed.
func (u *Utxo) Confirm(status UtxoStatus) error {
	if u.IsConfirmed() {
		return nil
	}

	emptyStatus := UtxoStatus{}
	if status == emptyStatus {
		return fmt.Errorf("status must not be empty")
	}
	if status.BlockHeight == 0 && status.BlockTime == 0 && status.BlockHash == "" {
		return fmt.Errorf("missing block info")
	}
	u.ConfirmedStatus = status
	u.ConfirmedStatus.Txid = ""
	return nil
}

// Lock marks the current utxo as locked.
func (u *Utxo) Lock(timestamp, expiryTimestamp int64) {
	if !u.IsLocked() {
		u.LockTimestamp = timestamp
		u.LockExpiryTimestamp = expiryTimestamp
	}
}

// Unlock marks the current locked utxo as unlocked.
func (u *Utxo) Unlock() {
	if !u.CanUnlock() {
		return
	}

	u.LockTimestamp = 0
	u.LockExpiryTimestamp = 0
}

// GroupUtxosByCurrency establishes the ordering precondition of the
// selection engine: the given utxos are grouped by currency and every group
// is sorted in descending order of amount, ties broken by ledger position to
// keep selections deterministic.
func GroupUtxosByCurrency(utxos []*Utxo) map[string][]*Utxo {
	grouped := make(map[string][]*Utxo)
	for _, u := range utxos {
		grouped[u.Currency] = append(grouped[u.Currency], u)
	}
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			if group[i].Amount != group[j].Amount {
				return group[i].Amount > group[j].Amount
			}
			if group[i].BlkNum != group[j].BlkNum {
				return group[i].BlkNum < group[j].BlkNum
			}
			if group[i].TxIndex != group[j].TxIndex {
				return group[i].TxIndex < group[j].TxIndex
			}
			return group[i].OIndex < group[j].OIndex
		})
	}
	return grouped
}
