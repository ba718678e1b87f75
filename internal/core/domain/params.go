package domain

const (
	// DefaultMaxInputs is the number of input slots of a ledger transaction.
	DefaultMaxInputs = 4
	// DefaultMaxOutputs is the number of output slots of a ledger transaction.
	DefaultMaxOutputs = 4
	// DefaultMergeCapPerCurrency is the max number of unselected utxos per
	// currency that can be proposed as stealth-merge candidates.
	DefaultMergeCapPerCurrency = 3
)

// Params holds the protocol constants bounding the shape of a ledger
// transaction. They can be overridden only through the configuration layer,
// the engine always receives them from outside.
type Params struct {
	MaxInputs           int
	MaxOutputs          int
	MergeCapPerCurrency int
}

// DefaultParams returns the protocol constants of the target ledger.
func DefaultParams() Params {
	return Params{
		MaxInputs:           DefaultMaxInputs,
		MaxOutputs:          DefaultMaxOutputs,
		MergeCapPerCurrency: DefaultMergeCapPerCurrency,
	}
}

func (p Params) Validate() error {
	if p.MaxInputs <= 0 {
		return ErrInvalidMaxInputs
	}
	if p.MaxOutputs <= 0 {
		return ErrInvalidMaxOutputs
	}
	if p.MergeCapPerCurrency < 0 {
		return ErrInvalidMergeCap
	}
	return nil
}
