// Package ledger abstracts the ledger service the session reads account
// state from and submits signed envelopes to.
package ledger

import "context"

// Signer is one entry of an account's signer list. The account's own master
// key appears here with type "master".
type Signer struct {
	Key    string
	Weight int32
}

// Account is the slice of ledger account state the session cares about.
type Account struct {
	ID       string
	Sequence int64
	Signers  []Signer
}

// Gateway is the remote ledger surface. Implementations must be safe for
// concurrent use; the session calls LoadAccount and SubmitTransaction from
// independent goroutines.
type Gateway interface {
	// LoadAccount fetches current account state by public key.
	LoadAccount(ctx context.Context, accountID string) (*Account, error)

	// SubmitTransaction submits a signed base64 transaction envelope and
	// returns an error if the ledger rejects it.
	SubmitTransaction(ctx context.Context, envelopeXDR string) error
}
