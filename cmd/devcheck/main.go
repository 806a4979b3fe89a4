package main

import (
	"context"
	"time"

	"github.com/Layr-Labs/fhevm-session-go/pkg/chainManager"
	"github.com/Layr-Labs/fhevm-session-go/pkg/chainResolver"
	"github.com/Layr-Labs/fhevm-session-go/pkg/decryptionSignature"
	"github.com/Layr-Labs/fhevm-session-go/pkg/fhevm"
	"github.com/Layr-Labs/fhevm-session-go/pkg/instanceBuilder"
	"github.com/Layr-Labs/fhevm-session-go/pkg/lifecycle"
	"github.com/Layr-Labs/fhevm-session-go/pkg/logger"
	"github.com/Layr-Labs/fhevm-session-go/pkg/metrics"
	"github.com/Layr-Labs/fhevm-session-go/pkg/sdkLoader"
	"github.com/Layr-Labs/fhevm-session-go/pkg/session"
	"github.com/Layr-Labs/fhevm-session-go/pkg/signer"
	"github.com/Layr-Labs/fhevm-session-go/pkg/storage"
	"github.com/Layr-Labs/fhevm-session-go/pkg/transport"
	"github.com/Layr-Labs/fhevm-session-go/pkg/yieldCalculator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	devChainID      = uint64(31337)
	devRpcURL       = "http://localhost:8545"
	contractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	// Hardhat account #0.
	devPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

func main() {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	m := metrics.NewMetrics(prometheus.NewRegistry())

	cm := chainManager.NewChainManager(l)
	defer cm.Close()
	devChain, err := cm.GetOrAddChain(ctx, &chainManager.ChainConfig{ChainID: devChainID, RPCUrl: devRpcURL})
	if err != nil {
		l.Sugar().Fatalf("Failed to connect dev chain: %v", err)
	}

	builder := instanceBuilder.NewInstanceBuilder(
		nil,
		chainResolver.NewResolver(chainResolver.DefaultMockChains, nil, l),
		sdkLoader.NewLoader(sdkLoader.UnavailableHost{}, nil, l),
		cm,
		m,
		l,
	)
	lc := lifecycle.NewLifecycle(builder, m, l)
	defer lc.Close()

	lc.SetTarget(&fhevm.ChainTarget{ChainID: devChainID, RpcURL: devRpcURL}, true)
	state, err := lc.WaitSettled(ctx)
	if err != nil {
		l.Sugar().Fatalf("Failed waiting for instance: %v", err)
	}
	if state.Status != lifecycle.StatusReady {
		l.Sugar().Fatalf("Instance is %s: %v", state.Status, state.Err)
	}
	l.Sugar().Infow("Instance ready", "config", state.Instance.Config().Name)

	devSigner, err := signer.NewPrivateKeySigner(devPrivateKey)
	if err != nil {
		l.Sugar().Fatalf("Failed to create private key signer: %v", err)
	}
	store, err := storage.NewInMemoryStorage(0)
	if err != nil {
		l.Sugar().Fatalf("Failed to create storage: %v", err)
	}
	cache := decryptionSignature.NewCache(nil, store, m, l)

	contract := yieldCalculator.NewClient(contractAddress, devChainID, devChain.RPCClient, transport.NewTransport(devSigner, l), l)
	sess := session.NewSession(lc, cache, l)
	if err := sess.Bind(&session.Binding{ChainID: devChainID, Signer: devSigner, Contract: contract}); err != nil {
		l.Sugar().Fatalf("Failed to bind session: %v", err)
	}

	receipt, err := sess.SubmitCalculation(ctx, 10_000, 365)
	if err != nil {
		l.Sugar().Fatalf("Failed to submit calculation: %v", err)
	}
	l.Sugar().Infow("Submitted calculation", "txHash", receipt.TxHash.Hex())

	for i := 0; i < 2; i++ {
		if _, err := sess.RefreshHandles(ctx); err != nil {
			l.Sugar().Fatalf("Failed to refresh handles: %v", err)
		}
		balances, err := sess.Decrypt(ctx)
		if err != nil {
			l.Sugar().Fatalf("Failed to decrypt: %v", err)
		}
		l.Sugar().Infow("Decrypted", "yield", balances.Yield.String(), "total", balances.Total.String())
	}

	prompts := testutil.ToFloat64(m.SignaturePromptCounter("signed"))
	if prompts != 1 {
		l.Sugar().Fatalf("Expected exactly one signing prompt, got %v", prompts)
	}
	l.Sugar().Infow("Dev check passed")
}
