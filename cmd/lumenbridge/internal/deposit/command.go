package deposit

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/lumenbridge/cmd/lumenbridge/internal"
	"github.com/tinyland-inc/lumenbridge/pkg/bridge"
	"github.com/tinyland-inc/lumenbridge/pkg/config"
	"github.com/tinyland-inc/lumenbridge/pkg/logger"
	"github.com/tinyland-inc/lumenbridge/pkg/session"
	"github.com/tinyland-inc/lumenbridge/pkg/stream"
)

func NewDepositCommand() *cobra.Command {
	var chainName string
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:     "deposit",
		Short:   "Open a deposit session and stream bridge events",
		Example: "lumenbridge deposit --chain bitcoin",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if debug {
				logger.SetLevel(logger.LevelDebug)
			}
			return depositCmd(bridge.Chain(chainName), configPath)
		},
	}

	cmd.Flags().StringVarP(&chainName, "chain", "c", "bitcoin", "Deposit chain: bitcoin, ethereum, or lumen")
	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default ~/.lumenbridge/config.json)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func depositCmd(chain bridge.Chain, configPath string) error {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = internal.LoadConfig()
	}
	if err != nil {
		return err
	}

	sess, err := session.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	var doneOnce sync.Once
	handler := func(ev session.Event) {
		switch ev.Kind {
		case stream.KindError:
			fmt.Printf("event: error: %v\n", ev.Err)
		case stream.KindExchangedTimelocked:
			fmt.Printf("event: %s (unlocks at %d)\n", ev.Kind, ev.Timelock.UnlockTime)
			doneOnce.Do(func() { close(done) })
		case stream.KindExchanged:
			fmt.Printf("event: %s\n", ev.Kind)
			doneOnce.Do(func() { close(done) })
		default:
			fmt.Printf("event: %s\n", ev.Kind)
		}
	}

	var result *session.Result
	switch chain {
	case bridge.ChainBitcoin:
		result, err = sess.StartBitcoin(ctx, handler)
	case bridge.ChainEthereum:
		result, err = sess.StartEthereum(ctx, handler)
	case bridge.ChainLumen:
		result, err = sess.StartLumen(ctx, handler)
	default:
		return fmt.Errorf("unsupported chain %q", chain)
	}
	if err != nil {
		return err
	}

	fmt.Printf("deposit address: %s\n", result.Address)
	if result.Memo != "" {
		fmt.Printf("deposit memo:    %s\n", result.Memo)
	}
	fmt.Printf("account:         %s\n", result.Keypair.Address())
	if cfg.Seed == "" {
		// The keypair was generated for this session; without the seed the
		// user cannot recover anything after a crash.
		fmt.Printf("secret seed:     %s\n", result.Keypair.Seed())
	}
	fmt.Println("waiting for bridge events (ctrl-c to abort)...")

	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}
