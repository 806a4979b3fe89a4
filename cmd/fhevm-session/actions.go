package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevmErrors"
	"github.com/Layr-Labs/fhevm-session-go/pkg/lifecycle"
	"github.com/Layr-Labs/fhevm-session-go/pkg/logger"
	"github.com/Layr-Labs/fhevm-session-go/pkg/wallet"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// withRuntime builds a runtime, connects it to the wallet and runs fn with a
// command timeout.
func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	rt, err := setupRuntime(ctx, c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.connect(ctx); err != nil {
		return err
	}
	return fn(ctx, rt)
}

func statusAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		account, _ := rt.session.Account()
		fmt.Fprintf(c.App.Writer, "chain:    %d\n", rt.chainID)
		fmt.Fprintf(c.App.Writer, "account:  %s\n", account.Hex())

		inst, err := rt.instance(ctx)
		if err != nil {
			fmt.Fprintf(c.App.Writer, "instance: error (%s)\n", fhevmErrors.KindOf(err))
			return err
		}
		cfg := inst.Config()
		fmt.Fprintf(c.App.Writer, "instance: ready (%s, gateway chain %d)\n", cfg.Name, cfg.GatewayChainID)
		return nil
	})
}

func refreshAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		h, err := rt.session.RefreshHandles(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "yield: %s\ntotal: %s\n", h.Yield.Hex(), h.Total.Hex())
		return nil
	})
}

func decryptAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if _, err := rt.instance(ctx); err != nil {
			return err
		}
		b, err := rt.session.Decrypt(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "yield: %s\ntotal: %s\n", b.Yield, b.Total)
		return nil
	})
}

func calculateAction(c *cli.Context) error {
	days := c.Uint("days")
	if days == 0 || days > math.MaxUint32 {
		return fmt.Errorf("--days must be between 1 and %d", uint32(math.MaxUint32))
	}
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if rt.txSigner == nil {
			return fmt.Errorf("calculate requires --private-key or --aws-kms-key-id")
		}
		if _, err := rt.instance(ctx); err != nil {
			return err
		}
		receipt, err := rt.session.SubmitCalculation(ctx, c.Uint64("principal"), uint32(days))
		if err != nil {
			return describeTxError(receipt, err)
		}
		fmt.Fprintf(c.App.Writer, "calculation submitted in %s (block %s)\n", receipt.TxHash.Hex(), receipt.BlockNumber)
		return nil
	})
}

func rateShowAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		rate, err := rt.session.GetMyRate(ctx)
		if err != nil {
			return err
		}
		kind := "default"
		if rate.IsCustom {
			kind = "custom"
		}
		fmt.Fprintf(c.App.Writer, "rate: %d bps (%s)\n", rate.Bps, kind)
		return nil
	})
}

func rateSetAction(c *cli.Context) error {
	bps := c.Uint("bps")
	if bps > math.MaxUint32 {
		return fmt.Errorf("--bps is out of range")
	}
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if rt.txSigner == nil {
			return fmt.Errorf("rate set requires --private-key or --aws-kms-key-id")
		}
		receipt, err := rt.session.SetCustomRate(ctx, uint32(bps))
		if err != nil {
			return describeTxError(receipt, err)
		}
		fmt.Fprintf(c.App.Writer, "custom rate set in %s\n", receipt.TxHash.Hex())
		return nil
	})
}

func rateClearAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if rt.txSigner == nil {
			return fmt.Errorf("rate clear requires --private-key or --aws-kms-key-id")
		}
		receipt, err := rt.session.ClearCustomRate(ctx)
		if err != nil {
			return describeTxError(receipt, err)
		}
		fmt.Fprintf(c.App.Writer, "custom rate cleared in %s\n", receipt.TxHash.Hex())
		return nil
	})
}

func describeTxError(receipt *types.Receipt, err error) error {
	var failure *fhevmErrors.TransactionFailure
	if errors.As(err, &failure) {
		if receipt != nil {
			return fmt.Errorf("%s (tx %s)", failure.Message, receipt.TxHash.Hex())
		}
		return errors.New(failure.Message)
	}
	return err
}

// watchAction follows the wallet, rebuilding the instance and rebinding the
// session on every chain or account change, and serves metrics until
// interrupted.
func watchAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setupRuntime(ctx, c)
	if err != nil {
		return err
	}
	defer rt.Close()
	l := rt.logger

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/ready", func(w http.ResponseWriter, _ *http.Request) {
		if rt.lifecycle.State().Status != lifecycle.StatusReady {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{
		Addr:              c.String("metrics-addr"),
		Handler:           logger.HttpLoggerMiddleware(mux, l),
		ReadHeaderTimeout: 5 * time.Second,
	}

	watcher := wallet.NewWatcher(rt.provider, c.Duration("interval"), l)
	events := watcher.Subscribe()
	states := rt.lifecycle.Subscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Sugar().Infow("Serving metrics", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		for ev := range events {
			l.Sugar().Infow("Wallet changed",
				zap.String("kind", string(ev.Kind)),
				zap.Uint64("chainId", ev.ChainID),
				zap.Int("accounts", len(ev.Accounts)),
			)
			if err := rt.bind(gctx, ev.ChainID, ev.Accounts); err != nil {
				l.Sugar().Warnw("Failed to bind session", zap.Error(err))
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case st, ok := <-states:
				if !ok {
					return nil
				}
				l.Sugar().Infow("Instance state",
					zap.String("status", string(st.Status)),
					zap.Uint64("generation", st.Generation),
					zap.Error(st.Err),
				)
			}
		}
	})
	return g.Wait()
}
