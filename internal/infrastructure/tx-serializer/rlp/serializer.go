package rlp_serializer

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"

	"github.com/javimaravillas/elixir-omg/internal/core/domain"
	"github.com/javimaravillas/elixir-omg/internal/core/ports"
)

// rlpInput is the wire shape of a transaction input: the ledger position of
// the spent utxo.
type rlpInput struct {
	BlkNum  uint64
	TxIndex uint32
	OIndex  uint32
}

// rlpOutput is the wire shape of a transaction output.
type rlpOutput struct {
	Owner    []byte
	Currency []byte
	Amount   uint64
}

type rlpTransaction struct {
	Inputs   []rlpInput
	Outputs  []rlpOutput
	Metadata []byte
}

type serializer struct{}

// NewRLPTxSerializer is the factory for a ports.TxSerializer encoding drafts
// with RLP and hashing the encoding with Keccak-256, the scheme expected by
// the ledger's signature verification.
func NewRLPTxSerializer() ports.TxSerializer {
	return &serializer{}
}

func (s *serializer) Serialize(
	draft *domain.TransactionDraft,
) ([]byte, []byte, error) {
	// An advisory draft only reports which inputs would fund the order,
	// there is nothing meaningful to sign.
	if draft.IsAdvisory() {
		return nil, nil, nil
	}

	tx := rlpTransaction{
		Inputs:   make([]rlpInput, 0, len(draft.Inputs)),
		Outputs:  make([]rlpOutput, 0, len(draft.Outputs)),
		Metadata: draft.Metadata,
	}
	for _, in := range draft.Inputs {
		tx.Inputs = append(tx.Inputs, rlpInput{
			BlkNum:  in.BlkNum,
			TxIndex: in.TxIndex,
			OIndex:  in.OIndex,
		})
	}
	for _, out := range draft.Outputs {
		owner, err := decodeAddress(out.Owner)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid output owner: %w", err)
		}
		currency, err := decodeAddress(out.Currency)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid output currency: %w", err)
		}
		tx.Outputs = append(tx.Outputs, rlpOutput{
			Owner:    owner,
			Currency: currency,
			Amount:   out.Amount,
		})
	}

	rawBytes, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, nil, fmt.Errorf("error while encoding draft: %w", err)
	}

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(rawBytes)
	signingHash := hasher.Sum(nil)

	return rawBytes, signingHash, nil
}

func decodeAddress(addr string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(addr, "0x"))
}
