// Package session orchestrates one cross-chain deposit: it registers a
// deposit address with the bridge, consumes the bridge's event feed, and
// reacts by building, signing, and submitting ledger transactions.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stellar/go/keypair"

	"github.com/tinyland-inc/lumenbridge/pkg/bridge"
	"github.com/tinyland-inc/lumenbridge/pkg/config"
	"github.com/tinyland-inc/lumenbridge/pkg/ledger"
	"github.com/tinyland-inc/lumenbridge/pkg/logger"
	"github.com/tinyland-inc/lumenbridge/pkg/stream"
	"github.com/tinyland-inc/lumenbridge/pkg/txbuilder"
)

// Phase is the coarse protocol state of a session.
type Phase string

const (
	PhaseCreated         Phase = "created"
	PhaseStarted         Phase = "started"
	PhaseAwaitingAddress Phase = "awaiting_address"
	PhaseStreaming       Phase = "streaming"
	PhaseFinalizing      Phase = "finalizing"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
)

var (
	// ErrAlreadyStarted is returned when any start method is invoked a
	// second time on the same session instance.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrMissingMemo means the bridge returned a ledger-native deposit
	// address without the required memo component.
	ErrMissingMemo = errors.New("ledger-native address is missing its memo")
)

// memoSeparator splits the bridge-returned composite "address;memo" value
// for the ledger-native chain.
const memoSeparator = ";"

// Timelock is the decoded payload of an exchanged_timelocked event.
type Timelock struct {
	TransactionXDR string `json:"transaction"`
	UnlockTime     int64  `json:"unlock_time"`
}

// Event is a caller-visible protocol notification.
type Event struct {
	Kind stream.Kind

	// Timelock is set on exchanged_timelocked events.
	Timelock *Timelock

	// Err is the underlying cause on error events.
	Err error
}

// EventHandler receives protocol events. Invocations are serialized; a
// handler never runs concurrently with itself for one session.
type EventHandler func(Event)

// Result is what a successful start resolves to.
type Result struct {
	Chain   bridge.Chain
	Address string

	// Memo is populated only for the ledger-native chain.
	Memo string

	Keypair *keypair.Full
}

// Session drives one deposit workflow. A session starts at most once and is
// disposed by its owner after a terminal event.
type Session struct {
	cfg     *config.Config
	id      string
	bridge  *bridge.Client
	gateway ledger.Gateway
	builder *txbuilder.Builder
	kp      *keypair.Full

	started atomic.Bool
	signer  string

	mu        sync.Mutex
	phase     Phase
	handler   EventHandler
	streamCtx context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	// emitMu serializes handler invocations across the subscription
	// goroutine and the finalize/recovery goroutines.
	emitMu sync.Mutex
}

// Option adjusts session construction, mainly for tests.
type Option func(*Session)

// WithGateway substitutes the ledger gateway.
func WithGateway(g ledger.Gateway) Option {
	return func(s *Session) { s.gateway = g }
}

// New validates cfg and builds a session. The keypair is parsed from the
// configured seed or freshly generated; no network I/O happens here.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var kp *keypair.Full
	var err error
	if cfg.Seed != "" {
		kp, err = keypair.ParseFull(cfg.Seed)
	} else {
		kp, err = keypair.Random()
	}
	if err != nil {
		return nil, fmt.Errorf("preparing session keypair: %w", err)
	}

	s := &Session{
		cfg:     cfg,
		id:      uuid.NewString(),
		bridge:  bridge.NewClient(cfg.BifrostURL),
		gateway: ledger.NewHorizonGateway(cfg.HorizonURL),
		builder: txbuilder.New(cfg.NetworkPassphrase()),
		kp:      kp,
		phase:   PhaseCreated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session's log-correlation identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current protocol phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// StartBitcoin registers a bitcoin deposit address and begins streaming.
func (s *Session) StartBitcoin(ctx context.Context, handler EventHandler) (*Result, error) {
	return s.start(ctx, bridge.ChainBitcoin, handler)
}

// StartEthereum registers an ethereum deposit address and begins streaming.
func (s *Session) StartEthereum(ctx context.Context, handler EventHandler) (*Result, error) {
	return s.start(ctx, bridge.ChainEthereum, handler)
}

// StartLumen registers a ledger-native deposit address and begins streaming.
// The returned Result carries the memo split out of the bridge's composite
// address value.
func (s *Session) StartLumen(ctx context.Context, handler EventHandler) (*Result, error) {
	return s.start(ctx, bridge.ChainLumen, handler)
}

func (s *Session) start(ctx context.Context, chain bridge.Chain, handler EventHandler) (*Result, error) {
	if handler == nil {
		return nil, errors.New("event handler is required")
	}
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	s.setPhase(PhaseStarted)

	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()

	s.setPhase(PhaseAwaitingAddress)
	reg, err := s.bridge.RegisterAddress(ctx, chain, s.kp.Address())
	if err != nil {
		s.setPhase(PhaseFailed)
		return nil, err
	}

	result := &Result{Chain: chain, Address: reg.Address, Keypair: s.kp}
	streamID := reg.Address
	if chain == bridge.ChainLumen {
		address, memo, found := strings.Cut(reg.Address, memoSeparator)
		if !found || memo == "" {
			s.setPhase(PhaseFailed)
			return nil, fmt.Errorf("%w: %q", ErrMissingMemo, reg.Address)
		}
		result.Address = address
		result.Memo = memo
		streamID = memo
	}
	s.signer = reg.Signer

	streamCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.streamCtx = streamCtx
	s.cancel = cancel
	s.mu.Unlock()

	consumer := stream.NewConsumer(s.cfg.BifrostURL, streamID)
	s.setPhase(PhaseStreaming)
	go func() {
		if err := consumer.Run(streamCtx, s.dispatch); err != nil && !errors.Is(err, context.Canceled) {
			logger.WarnCF("session", "Event subscription ended", map[string]any{
				"session": s.id,
				"error":   err.Error(),
			})
		}
	}()

	logger.InfoCF("session", "Deposit session streaming", map[string]any{
		"session": s.id,
		"chain":   string(chain),
		"address": result.Address,
		"signer":  s.signer != "",
	})
	return result, nil
}

// dispatch routes one feed notification. It runs on the subscription
// goroutine, so notifications are handled strictly in arrival order.
func (s *Session) dispatch(ev stream.Event) {
	switch ev.Kind {
	case stream.KindTransactionReceived, stream.KindAccountConfigured:
		s.emit(Event{Kind: ev.Kind})

	case stream.KindAccountCreated:
		// Configuration (and the recovery merge it stages) runs
		// asynchronously; the notification itself is forwarded right away.
		go s.configureAccount()
		s.emit(Event{Kind: ev.Kind})

	case stream.KindExchanged:
		s.emit(Event{Kind: ev.Kind})
		s.finish(PhaseDone)

	case stream.KindExchangedTimelocked:
		tl, err := decodeTimelock(ev.Data)
		if err != nil {
			s.emitError(err)
		} else {
			s.emit(Event{Kind: ev.Kind, Timelock: tl})
		}
		s.finish(PhaseDone)

	case stream.KindError:
		s.emit(Event{Kind: stream.KindError, Err: wireError(ev.Data)})
	}
}

// configureAccount is the account-configuration protocol, triggered by an
// account_created notification. Failures surface as error notifications and
// end the session; they are never re-raised to the caller that started it.
func (s *Session) configureAccount() {
	s.setPhase(PhaseFinalizing)
	ctx := s.streamContext()

	account, err := s.gateway.LoadAccount(ctx, s.kp.Address())
	if err != nil {
		s.finalizeError(fmt.Errorf("loading deposit account: %w", err))
		return
	}

	// Recovery is staged whenever a recovery key is configured, whether or
	// not signer installation turns out to be needed, and without ordering
	// relative to it.
	if s.cfg.RecoveryPublicKey != "" {
		go s.submitRecoveryMerge(ctx, account.Sequence)
	}

	if s.signer == "" {
		s.configured()
		return
	}

	if signerInstalled(account, s.signer) {
		// The ledger already shows the desired weights; a repeated
		// account_created must not submit a second state change.
		logger.InfoCF("session", "Bridge signer already installed", map[string]any{
			"session": s.id,
			"account": s.kp.Address(),
		})
		s.configured()
		return
	}

	envelope, err := s.builder.SignerInstallation(s.kp, account.Sequence, s.signer)
	if err != nil {
		s.finalizeError(err)
		return
	}
	if err := s.gateway.SubmitTransaction(ctx, envelope); err != nil {
		s.finalizeError(fmt.Errorf("installing bridge signer: %w", err))
		return
	}
	s.configured()
}

func (s *Session) configured() {
	s.setPhase(PhaseStreaming)
	s.emit(Event{Kind: stream.KindAccountConfigured})
}

// submitRecoveryMerge pre-signs the account merge into the recovery account
// and hands it to the bridge, which gates its submission timing. The source
// sequence is the one observed at account creation, never re-fetched.
func (s *Session) submitRecoveryMerge(ctx context.Context, sequence int64) {
	envelope, err := s.builder.RecoveryMerge(s.kp, sequence, s.cfg.RecoveryPublicKey)
	if err != nil {
		s.emitError(err)
		return
	}
	if err := s.bridge.SubmitRecovery(ctx, envelope); err != nil {
		s.emitError(err)
		return
	}
	logger.InfoCF("session", "Recovery transaction staged with bridge", map[string]any{
		"session":  s.id,
		"recovery": s.cfg.RecoveryPublicKey,
	})
}

// signerInstalled reports whether the account already holds the desired
// configuration: the bridge signer at weight exactly 1 and every other
// signer, master key included, at weight 0.
func signerInstalled(account *ledger.Account, bridgeSigner string) bool {
	found := false
	for _, sg := range account.Signers {
		if sg.Key == bridgeSigner {
			if sg.Weight != 1 {
				return false
			}
			found = true
			continue
		}
		if sg.Weight != 0 {
			return false
		}
	}
	return found
}

func decodeTimelock(data []byte) (*Timelock, error) {
	var tl Timelock
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, fmt.Errorf("decoding timelock payload: %w", err)
	}
	return &tl, nil
}

func wireError(data []byte) error {
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "bridge reported an error"
	}
	return errors.New(msg)
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	handler(ev)
}

func (s *Session) emitError(err error) {
	logger.ErrorCF("session", "Protocol error", map[string]any{
		"session": s.id,
		"error":   err.Error(),
	})
	s.emit(Event{Kind: stream.KindError, Err: err})
}

// finalizeError reports an unrecoverable configuration failure and ends the
// session.
func (s *Session) finalizeError(err error) {
	s.emitError(err)
	s.finish(PhaseFailed)
}

// finish closes the event subscription exactly once and records the
// terminal phase.
func (s *Session) finish(terminal Phase) {
	s.closeOnce.Do(func() {
		s.setPhase(terminal)
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		logger.InfoCF("session", "Session finished", map[string]any{
			"session": s.id,
			"phase":   string(terminal),
		})
	})
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) streamContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamCtx != nil {
		return s.streamCtx
	}
	return context.Background()
}
