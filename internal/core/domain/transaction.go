package domain

import (
	"sort"
)

// TransactionDraft is a fully-specified transaction ready for cryptographic
// signing: the selected inputs, the ordered list of outputs (payments plus
// computed change), the fee and the optional metadata blob.
// RawBytes and SigningHash are placeholders filled by the serialization
// collaborator, they are left empty for advisory drafts whose payments have
// no owner.
type TransactionDraft struct {
	Inputs      []*Utxo
	Outputs     []Payment
	Fee         Fee
	Metadata    []byte
	RawBytes    []byte
	SigningHash []byte
}

// IsAdvisory returns whether the draft only advises which inputs would fund
// the order. Such a draft has at least one ownerless output and must not be
// serialized nor signed.
func (d *TransactionDraft) IsAdvisory() bool {
	for _, out := range d.Outputs {
		if out.Owner == "" {
			return true
		}
	}
	return false
}

// InputKeys returns the positions of the draft inputs.
func (d *TransactionDraft) InputKeys() []UtxoKey {
	keys := make([]UtxoKey, 0, len(d.Inputs))
	for _, in := range d.Inputs {
		keys = append(keys, in.Key())
	}
	return keys
}

// AssembleTransaction turns a complete selection into a transaction draft
// for the given order. For every selected currency the difference between
// the selected amount and the amount owed to payments and fee becomes an
// extra change output paid to the order owner, while a non-positive
// difference produces nothing.
// It fails with ErrTooManyOutputs if payments plus change exceed the output
// slots, or with ErrEmptyTransaction if the selection resolved to no inputs.
func AssembleTransaction(
	selected map[string][]*Utxo, order Order, params Params,
) (*TransactionDraft, error) {
	owed := make(map[string]uint64)
	for _, p := range order.Payments {
		owed[p.Currency] += p.Amount
	}
	owed[order.Fee.Currency] += order.Fee.Amount

	currencies := make([]string, 0, len(selected))
	for currency := range selected {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)

	outputs := make([]Payment, 0, len(order.Payments))
	outputs = append(outputs, order.Payments...)
	inputs := make([]*Utxo, 0)
	for _, currency := range currencies {
		utxos := selected[currency]
		inputs = append(inputs, utxos...)

		var total uint64
		for _, u := range utxos {
			total += u.Amount
		}
		if change := total - owed[currency]; total > owed[currency] {
			outputs = append(outputs, Payment{
				Owner:    order.Owner,
				Currency: currency,
				Amount:   change,
			})
		}
	}

	if len(outputs) > params.MaxOutputs {
		return nil, ErrTooManyOutputs
	}
	if len(inputs) == 0 {
		return nil, ErrEmptyTransaction
	}

	return &TransactionDraft{
		Inputs:   inputs,
		Outputs:  outputs,
		Fee:      order.Fee,
		Metadata: order.Metadata,
	}, nil
}

// Transaction is the data structure representing a drafted ledger
// transaction with extra info like whether it has been confirmed within a
// block.
type Transaction struct {
	Txid        string
	Raw         string
	Owner       string
	BlockHash   string
	BlockHeight uint64
	BlockTime   int64
}

// IsConfirmed returns whether the tx is included in the ledger.
func (t *Transaction) IsConfirmed() bool {
	return t.BlockHash != ""
}

// Confirm marks the tx as confirmed.
func (t *Transaction) Confirm(
	blockHash string, blockHeight uint64, blockTime int64,
) {
	if t.IsConfirmed() {
		return
	}

	t.BlockHash = blockHash
	t.BlockHeight = blockHeight
	t.BlockTime = blockTime
}
