package ledger

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stellar/go/clients/horizonclient"
)

// HorizonGateway implements Gateway against a horizon-style API.
type HorizonGateway struct {
	client *horizonclient.Client
}

func NewHorizonGateway(horizonURL string) *HorizonGateway {
	return &HorizonGateway{
		client: &horizonclient.Client{
			HorizonURL: horizonURL,
			HTTP:       &http.Client{Timeout: 30 * time.Second},
		},
	}
}

var _ Gateway = (*HorizonGateway)(nil)

func (g *HorizonGateway) LoadAccount(ctx context.Context, accountID string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detail, err := g.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	seq, err := detail.GetSequenceNumber()
	if err != nil {
		return nil, fmt.Errorf("parsing sequence number for %s: %w", accountID, err)
	}

	account := &Account{
		ID:       detail.AccountID,
		Sequence: seq,
		Signers:  make([]Signer, 0, len(detail.Signers)),
	}
	for _, s := range detail.Signers {
		account.Signers = append(account.Signers, Signer{Key: s.Key, Weight: s.Weight})
	}
	return account, nil
}

func (g *HorizonGateway) SubmitTransaction(ctx context.Context, envelopeXDR string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := g.client.SubmitTransactionXDR(envelopeXDR); err != nil {
		if herr := horizonclient.GetError(err); herr != nil {
			if codes, cerr := herr.ResultCodes(); cerr == nil {
				return fmt.Errorf("transaction rejected: %s (%v)", codes.TransactionCode, codes.OperationCodes)
			}
		}
		return fmt.Errorf("submitting transaction: %w", err)
	}
	return nil
}
