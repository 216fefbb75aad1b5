package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/urfave/cli/v2"

	"github.com/limitlxx/kirito-sdk-sub003/events"
	"github.com/limitlxx/kirito-sdk-sub003/logging"
	"github.com/limitlxx/kirito-sdk-sub003/membership"
	"github.com/limitlxx/kirito-sdk-sub003/server"
	"github.com/limitlxx/kirito-sdk-sub003/verifier"
)

func main() {
	runCli()
}

func runCli() {
	app := cli.App{
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name: "start",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json-logging", Usage: "enable JSON logging", Required: false},
					&cli.StringFlag{Name: "listen-address", Usage: "address for the API server", Value: "localhost:3001"},
					&cli.StringFlag{Name: "metrics-address", Usage: "address for the metrics server", Value: "localhost:9998"},
					&cli.StringFlag{Name: "vkeys-dir", Usage: "directory containing Groth16 verifying keys", Value: "./vkeys"},
					&cli.StringFlag{Name: "vkey", Usage: "id of the verifying key used for membership proofs", Value: "membership"},
					&cli.StringFlag{Name: "owner", Usage: "hex-encoded owner address with admin rights over all groups", Required: false},
					&cli.StringFlag{Name: "redis-url", Usage: "Redis URL for audit event streaming", EnvVars: []string{"REDIS_URL"}, Required: false},
					&cli.StringFlag{Name: "api-key", Usage: "API key for authenticated endpoints", EnvVars: []string{"MEMBERSHIP_API_KEY"}, Required: false},
				},
				Action: func(context *cli.Context) error {
					if context.Bool("json-logging") {
						logging.SetJSONOutput()
					}

					opts := []membership.Option{}

					if owner := context.String("owner"); owner != "" {
						ownerValue := new(big.Int)
						if err := membership.FromHex(ownerValue, owner); err != nil {
							return fmt.Errorf("invalid owner: %w", err)
						}
						opts = append(opts, membership.WithOwner(ownerValue))
					}

					proofVerifier, err := verifier.LoadFromDir(context.String("vkeys-dir"))
					if err != nil {
						return err
					}
					keyID := context.String("vkey")
					if !proofVerifier.HasKey(keyID) {
						logging.Logger().Warn().
							Str("vkey", keyID).
							Msg("verifying key not loaded, all proof verifications will fail")
					}
					opts = append(opts, membership.WithVerifier(proofVerifier, keyID))

					sinks := events.MultiSink{events.LogSink{}}
					if redisURL := context.String("redis-url"); redisURL != "" {
						redisSink, err := events.NewRedisSink(redisURL, events.DefaultStream)
						if err != nil {
							return err
						}
						defer redisSink.Close()
						sinks = append(sinks, redisSink)
					}
					opts = append(opts, membership.WithSink(sinks))

					engine := membership.New(opts...)

					config := &server.Config{
						ListenAddress:  context.String("listen-address"),
						MetricsAddress: context.String("metrics-address"),
						APIKey:         context.String("api-key"),
					}
					instance := server.Run(config, engine)
					sigint := make(chan os.Signal, 1)
					signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
					<-sigint
					logging.Logger().Info().Msg("received sigint, shutting down")
					instance.RequestStop()
					instance.AwaitStop()
					return nil
				},
			},
			{
				Name:  "compute-root",
				Usage: "read a JSON array of hex commitments from stdin and print the Merkle root",
				Action: func(context *cli.Context) error {
					var commitments []string
					if err := json.NewDecoder(os.Stdin).Decode(&commitments); err != nil {
						return fmt.Errorf("invalid input: %w", err)
					}
					leaves := make([]*big.Int, len(commitments))
					for i, commitment := range commitments {
						leaves[i] = new(big.Int)
						if err := membership.FromHex(leaves[i], commitment); err != nil {
							return fmt.Errorf("commitment %d: %w", i, err)
						}
					}
					root, err := membership.ComputeRoot(leaves)
					if err != nil {
						return err
					}
					fmt.Println(membership.ToHex(root))
					return nil
				},
			},
			{
				Name:  "gen-test-group",
				Usage: "generate random commitments and their Merkle root as a test fixture",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "n", Usage: "number of members", Value: 8},
				},
				Action: func(context *cli.Context) error {
					n := context.Uint("n")
					leaves := make([]*big.Int, n)
					commitments := make([]string, n)
					for i := range leaves {
						leaf, err := rand.Int(rand.Reader, fr.Modulus())
						if err != nil {
							return err
						}
						leaves[i] = leaf
						commitments[i] = membership.ToHex(leaf)
					}
					root, err := membership.ComputeRoot(leaves)
					if err != nil {
						return err
					}
					output, err := json.MarshalIndent(map[string]interface{}{
						"commitments": commitments,
						"merkle_root": membership.ToHex(root),
					}, "", "  ")
					if err != nil {
						return err
					}
					fmt.Println(string(output))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Logger().Fatal().Err(err).Msg("app failed")
	}
}
