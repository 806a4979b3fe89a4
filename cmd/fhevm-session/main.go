package main

import (
	"fmt"
	"os"

	cli "github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "fhevm-session",
		Usage: "Confidential yield calculator session client",
		Description: `fhevm-session builds an FHE instance for the connected chain, keeps a
cached decryption authorization per account and contract set, and runs
encrypted calculations against a SecureYieldCalculator deployment.`,
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a TOML config file",
				EnvVars: []string{"FHEVM_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Wallet or node JSON-RPC endpoint",
				EnvVars: []string{"RPC_URL"},
			},
			&cli.StringSliceFlag{
				Name:    "mock-chains",
				Usage:   "Local dev chains in format 'chainId:rpcUrl' (e.g., '31337:http://localhost:8545')",
				EnvVars: []string{"MOCK_CHAINS"},
			},
			&cli.StringSliceFlag{
				Name:    "contracts",
				Aliases: []string{"c"},
				Usage:   "SecureYieldCalculator deployments in format 'chainId:address'",
				EnvVars: []string{"CONTRACTS"},
			},
			&cli.Int64Flag{
				Name:    "signature-duration-days",
				Usage:   "Validity window of new decryption signatures",
				EnvVars: []string{"SIGNATURE_DURATION_DAYS"},
			},
			// SDK options
			&cli.StringFlag{
				Name:    "sdk-source",
				Usage:   "Path to the relayer SDK plugin",
				EnvVars: []string{"SDK_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "sdk-min-version",
				Usage:   "Lowest accepted relayer SDK version",
				EnvVars: []string{"SDK_MIN_VERSION"},
			},
			&cli.IntFlag{
				Name:    "sdk-threads",
				Usage:   "Worker threads for SDK parameter setup (0 lets the SDK decide)",
				EnvVars: []string{"SDK_THREADS"},
			},
			// Signature storage options
			&cli.StringFlag{
				Name:    "storage",
				Usage:   "Decryption signature storage: memory, postgres or aws-secrets-manager",
				EnvVars: []string{"STORAGE_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "Postgres connection string for the postgres storage backend",
				EnvVars: []string{"POSTGRES_DSN"},
			},
			&cli.StringFlag{
				Name:    "storage-aws-region",
				Usage:   "AWS region for the aws-secrets-manager storage backend",
				EnvVars: []string{"STORAGE_AWS_REGION"},
			},
			&cli.StringFlag{
				Name:    "storage-aws-secret-prefix",
				Usage:   "Secret name prefix for the aws-secrets-manager storage backend",
				EnvVars: []string{"STORAGE_AWS_SECRET_PREFIX"},
			},
			// Signing options
			&cli.StringFlag{
				Name:    "private-key",
				Usage:   "Private key for signing (hex format, with or without 0x prefix)",
				EnvVars: []string{"PRIVATE_KEY"},
			},
			&cli.StringFlag{
				Name:    "aws-kms-key-id",
				Usage:   "AWS KMS key ID for signing",
				EnvVars: []string{"AWS_KMS_KEY_ID"},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region for the signing KMS key",
				EnvVars: []string{"AWS_REGION"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Timeout for one command",
				Value:   defaultTimeout,
				EnvVars: []string{"TIMEOUT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Resolve the connected chain and build an FHE instance",
				Action: statusAction,
			},
			{
				Name:    "refresh",
				Aliases: []string{"r"},
				Usage:   "Read the encrypted yield and total handles of the account",
				Action:  refreshAction,
			},
			{
				Name:  "decrypt",
				Usage: "Decrypt the account's last yield and total",
				Description: `Decrypts the last yield and total. The first run for an account and
contract signs a decryption authorization; later runs reuse it until it expires.`,
				Action: decryptAction,
			},
			{
				Name:    "calculate",
				Aliases: []string{"calc"},
				Usage:   "Submit an encrypted principal and duration",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:     "principal",
						Aliases:  []string{"p"},
						Usage:    "Principal amount",
						Required: true,
					},
					&cli.UintFlag{
						Name:     "days",
						Usage:    "Duration in days",
						Required: true,
					},
				},
				Action: calculateAction,
			},
			{
				Name:  "rate",
				Usage: "Show or change the account's yield rate",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the rate that applies to the account",
						Action: rateShowAction,
					},
					{
						Name:  "set",
						Usage: "Set a custom rate in basis points",
						Flags: []cli.Flag{
							&cli.UintFlag{
								Name:     "bps",
								Usage:    "Rate in basis points",
								Required: true,
							},
						},
						Action: rateSetAction,
					},
					{
						Name:   "clear",
						Usage:  "Clear the custom rate",
						Action: rateClearAction,
					},
				},
			},
			{
				Name:  "watch",
				Usage: "Follow wallet chain and account changes and serve metrics",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Listen address for the Prometheus endpoint",
						Value:   ":9090",
						EnvVars: []string{"METRICS_ADDR"},
					},
					&cli.DurationFlag{
						Name:    "interval",
						Usage:   "Wallet poll interval",
						Value:   defaultPollInterval,
						EnvVars: []string{"POLL_INTERVAL"},
					},
				},
				Action: watchAction,
			},
		},
		Before: loadConfig,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
