// Package bridge is the HTTP client for the bridge service: one-shot deposit
// address registration and recovery-transaction submission.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Chain identifies a supported deposit chain on the wire.
type Chain string

const (
	ChainBitcoin  Chain = "bitcoin"
	ChainEthereum Chain = "ethereum"
	// ChainLumen is the ledger-native chain; its deposit address carries a
	// distinguishing memo.
	ChainLumen Chain = "lumen"
)

// ProtocolVersion is the wire compatibility tag the bridge must report.
const ProtocolVersion = 2

var (
	// ErrChainMismatch means the bridge answered for a different chain than
	// the one requested.
	ErrChainMismatch = errors.New("bridge returned a different chain")

	// ErrProtocolVersionMismatch means client and bridge disagree on wire
	// semantics; the session must not proceed.
	ErrProtocolVersionMismatch = errors.New("bridge protocol version mismatch")
)

// Registration is the bridge's answer to an address registration.
type Registration struct {
	Chain           Chain  `json:"chain"`
	ProtocolVersion int    `json:"protocol_version"`
	Address         string `json:"address"`

	// Signer is the public key the bridge requires as a co-signer on the
	// deposit account. Empty when no signer is required.
	Signer string `json:"signer,omitempty"`
}

// Client talks to one bridge service.
type Client struct {
	http *resty.Client
}

func NewClient(bifrostURL string) *Client {
	return &Client{
		http: resty.New().SetBaseURL(bifrostURL),
	}
}

// RegisterAddress registers a deposit address for chain, keyed by the
// session's ledger public key. The response is rejected when its chain or
// protocol version does not match what was requested.
func (c *Client) RegisterAddress(ctx context.Context, chain Chain, ledgerPublicKey string) (*Registration, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"stellar_public_key": ledgerPublicKey}).
		Post(fmt.Sprintf("/generate-%s-address", chain))
	if err != nil {
		return nil, fmt.Errorf("registering %s address: %w", chain, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("registering %s address: bridge returned %s", chain, resp.Status())
	}

	var reg Registration
	if err := json.Unmarshal(resp.Body(), &reg); err != nil {
		return nil, fmt.Errorf("decoding registration response: %w", err)
	}
	if reg.Chain != chain {
		return nil, fmt.Errorf("%w: requested %q, got %q", ErrChainMismatch, chain, reg.Chain)
	}
	if reg.ProtocolVersion != ProtocolVersion {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrProtocolVersionMismatch, ProtocolVersion, reg.ProtocolVersion)
	}
	if reg.Address == "" {
		return nil, errors.New("registration response has no address")
	}
	return &reg, nil
}

// SubmitRecovery hands the pre-signed recovery merge envelope to the bridge.
// The bridge, not this client, decides when (and whether) to submit it to
// the ledger relative to the exchange it is orchestrating.
func (c *Client) SubmitRecovery(ctx context.Context, envelopeXDR string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"transaction_xdr": envelopeXDR}).
		Post("/recovery-transaction")
	if err != nil {
		return fmt.Errorf("submitting recovery transaction: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("submitting recovery transaction: bridge returned %s", resp.Status())
	}
	return nil
}
