package domain

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

const (
	addressLen = 20

	// MaxAmount bounds payment and fee amounts so that selection variance
	// arithmetic never overflows its signed accumulator.
	MaxAmount = uint64(math.MaxInt64)
)

// Payment is a single transfer of the given amount of a currency to the
// given owner. The owner may be left empty for advisory, find-funds-only
// calls, in that case the resulting draft is not meant to be signed.
type Payment struct {
	Owner    string
	Currency string
	Amount   uint64
}

func (p Payment) Validate() error {
	if p.Owner != "" {
		if err := ValidateAddress(p.Owner); err != nil {
			return fmt.Errorf("invalid payment owner: %w", err)
		}
	}
	if err := ValidateAddress(p.Currency); err != nil {
		return fmt.Errorf("invalid payment currency: %w", err)
	}
	if p.Amount == 0 || p.Amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// Fee is the amount owed to the operator, denominated in a single currency.
// A zero amount is allowed.
type Fee struct {
	Currency string
	Amount   uint64
}

func (f Fee) Validate() error {
	if err := ValidateAddress(f.Currency); err != nil {
		return fmt.Errorf("invalid fee currency: %w", err)
	}
	if f.Amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// Order is a payment order as submitted by a spender: one or more payments
// plus a fee, all possibly denominated in different currencies, along with
// an optional opaque metadata blob carried into the resulting transaction.
type Order struct {
	Owner    string
	Payments []Payment
	Fee      Fee
	Metadata []byte
}

func (o Order) Validate() error {
	if o.Owner == "" {
		return ErrMissingOrderOwner
	}
	if err := ValidateAddress(o.Owner); err != nil {
		return fmt.Errorf("invalid order owner: %w", err)
	}
	if len(o.Payments) == 0 {
		return ErrMissingPayments
	}
	for _, p := range o.Payments {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return o.Fee.Validate()
}

// ValidateAddress returns whether the given string is a valid 0x-prefixed
// hex encoding of a ledger address. Currency identifiers share the same
// encoding.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("missing address")
	}
	if !strings.HasPrefix(addr, "0x") {
		return fmt.Errorf("address must be prefixed with 0x")
	}
	buf, err := hex.DecodeString(strings.TrimPrefix(addr, "0x"))
	if err != nil {
		return fmt.Errorf("address is not in hex format")
	}
	if len(buf) != addressLen {
		return fmt.Errorf("invalid address length")
	}
	return nil
}
