package ports

import "github.com/javimaravillas/elixir-omg/internal/core/domain"

// TxSerializer is the abstraction for the signing collaborator encoding a
// transaction draft into its raw wire format and computing the hash to be
// signed by the spender.
type TxSerializer interface {
	// Serialize returns the raw encoding of the given draft along with its
	// signing hash. It no-ops, returning empty bytes and hash, for advisory
	// drafts with one or more ownerless outputs.
	Serialize(draft *domain.TransactionDraft) (rawBytes, signingHash []byte, err error)
}
