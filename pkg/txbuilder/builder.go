// Package txbuilder constructs the two ledger transactions the deposit
// protocol needs: bridge-signer installation and the pre-staged recovery
// merge. Both are signed with the session keypair and encoded as base64
// envelopes.
package txbuilder

import (
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Builder builds and signs transactions for one network passphrase.
type Builder struct {
	passphrase string
}

func New(networkPassphrase string) *Builder {
	return &Builder{passphrase: networkPassphrase}
}

// SignerInstallation builds a single setOptions transaction that zeroes the
// account's master-key weight and installs bridgeSigner at weight 1. The
// source sequence is the one observed when the account was created.
func (b *Builder) SignerInstallation(kp *keypair.Full, sequence int64, bridgeSigner string) (string, error) {
	source := txnbuild.NewSimpleAccount(kp.Address(), sequence)

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		BaseFee:              txnbuild.MinBaseFee,
		Timebounds:           txnbuild.NewInfiniteTimeout(),
		Operations: []txnbuild.Operation{
			&txnbuild.SetOptions{
				MasterWeight: txnbuild.NewThreshold(0),
				Signer: &txnbuild.Signer{
					Address: bridgeSigner,
					Weight:  txnbuild.Threshold(1),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("building signer installation: %w", err)
	}

	return b.sign(tx, kp)
}

// RecoveryMerge builds a single accountMerge transaction moving the deposit
// account's remaining balance into recoveryPublicKey. The source account is
// constructed locally from the sequence observed at account creation; it is
// deliberately not re-fetched, since the bridge gates submission timing.
func (b *Builder) RecoveryMerge(kp *keypair.Full, sequence int64, recoveryPublicKey string) (string, error) {
	source := txnbuild.NewSimpleAccount(kp.Address(), sequence)

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &source,
		IncrementSequenceNum: true,
		BaseFee:              txnbuild.MinBaseFee,
		Timebounds:           txnbuild.NewInfiniteTimeout(),
		Operations: []txnbuild.Operation{
			&txnbuild.AccountMerge{
				Destination: recoveryPublicKey,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("building recovery merge: %w", err)
	}

	return b.sign(tx, kp)
}

func (b *Builder) sign(tx *txnbuild.Transaction, kp *keypair.Full) (string, error) {
	signed, err := tx.Sign(b.passphrase, kp)
	if err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}
	envelope, err := signed.Base64()
	if err != nil {
		return "", fmt.Errorf("encoding transaction envelope: %w", err)
	}
	return envelope, nil
}
