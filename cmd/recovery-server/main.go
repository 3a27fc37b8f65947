// The recovery-server binary serves the guardian recovery API.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia/guardian-recovery-backend/cmd/flags"
	"github.com/custodia/guardian-recovery-backend/guardian"
	"github.com/custodia/guardian-recovery-backend/httpserver"
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/custodia/guardian-recovery-backend/orchestrator"
	"github.com/custodia/guardian-recovery-backend/registry"
	"github.com/custodia/guardian-recovery-backend/storage"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.RPCAddrFlag,
	flags.RegistryContractFlag,
	flags.OperatorAddrFlag,
	flags.StoreURIFlag,
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:  "recovery-server",
		Usage: "Serve the guardian-weighted threshold recovery API",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String(flags.ListenAddrFlag.Name)
			rpcAddr := cCtx.String(flags.RPCAddrFlag.Name)
			contractHex := cCtx.String(flags.RegistryContractFlag.Name)
			operatorHex := cCtx.String(flags.OperatorAddrFlag.Name)
			storeURIs := cCtx.StringSlice(flags.StoreURIFlag.Name)

			logger := flags.SetupLogger(cCtx)

			// Storage: multiple URIs replicate writes and fall back on reads.
			storeFactory := storage.NewStoreFactory(logger)
			locations := make([]interfaces.StoreLocation, len(storeURIs))
			for i, uri := range storeURIs {
				locations[i] = interfaces.StoreLocation(uri)
			}
			store, err := storeFactory.CreateMultiStore(locations)
			if err != nil {
				logger.Error("Failed to create storage", "err", err)
				return err
			}

			manager := guardian.NewManager(store, logger)

			orchOpts := []orchestrator.Option{}
			if rpcAddr != "" {
				if contractHex == "" || operatorHex == "" {
					logger.Error("registry-contract and operator-addr are required when rpc-addr is set")
					return cli.Exit("incomplete ledger configuration", 1)
				}

				contract, err := interfaces.NewAccountAddressFromHex(contractHex)
				if err != nil {
					logger.Error("Invalid registry contract address", "err", err)
					return err
				}
				operator, err := interfaces.NewAccountAddressFromHex(operatorHex)
				if err != nil {
					logger.Error("Invalid operator address", "err", err)
					return err
				}

				logger.Info("Connecting to ledger RPC", "address", rpcAddr)
				ethClient, err := ethclient.Dial(rpcAddr)
				if err != nil {
					logger.Error("Failed to dial RPC", "err", err)
					return err
				}

				registryFactory := registry.NewRegistryFactory(ethClient, ethClient)
				ledger, err := registryFactory.RegistryFor(contract)
				if err != nil {
					logger.Error("Failed to create registry client", "err", err)
					return err
				}

				orchOpts = append(orchOpts, orchestrator.WithSubmitter(registry.NewSubmitter(ledger, operator)))
				logger.Info("On-ledger mirroring enabled", "contract", contract.String())
			} else {
				logger.Info("On-ledger mirroring disabled")
			}

			orch := orchestrator.New(manager, store, logger, orchOpts...)

			cfg := flags.ConfigureServer(cCtx, logger, listenAddr)
			handler := httpserver.NewHandler(orch, logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
