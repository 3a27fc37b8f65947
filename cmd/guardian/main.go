// The guardian binary is the command-line companion for owners and
// guardians: it generates guardian keypairs, splits a secret into
// weight-sized encrypted share bundles, and drives recovery sessions
// against a running recovery server.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/custodia/guardian-recovery-backend/api"
	"github.com/custodia/guardian-recovery-backend/api/clients"
	"github.com/custodia/guardian-recovery-backend/cmd/flags"
	"github.com/custodia/guardian-recovery-backend/cryptoutils"
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/custodia/guardian-recovery-backend/registry"
	"github.com/custodia/guardian-recovery-backend/serviceresolver"
	"github.com/custodia/guardian-recovery-backend/shamir"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
)

// guardianSpec is one entry of the guardians file consumed by split.
type guardianSpec struct {
	Address    string `json:"address"`
	Weight     uint64 `json:"weight"`
	PubkeyFile string `json:"pubkey_file"`
}

func main() {
	app := &cli.App{
		Name:  "guardian",
		Usage: "Guardian-side tooling for weighted threshold recovery",
		Commands: []*cli.Command{
			keygenCommand(),
			splitCommand(),
			initiateCommand(),
			submitCommand(),
			statusCommand(),
			readinessCommand(),
			executeCommand(),
			cancelCommand(),
			discoverCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a guardian keypair for share encryption",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key-out", Value: "guardian.key", Usage: "private key output file"},
			&cli.StringFlag{Name: "pub-out", Value: "guardian.pub", Usage: "public key output file"},
			&cli.StringFlag{Name: "passphrase", Value: "", Usage: "wrap the private key under this passphrase"},
		},
		Action: func(cCtx *cli.Context) error {
			keyPEM, pubPEM, err := cryptoutils.GenerateGuardianKeypair()
			if err != nil {
				return fmt.Errorf("keypair generation failed: %w", err)
			}

			if passphrase := cCtx.String("passphrase"); passphrase != "" {
				keyPEM, err = cryptoutils.WrapWithPassphrase([]byte(passphrase), keyPEM)
				if err != nil {
					return fmt.Errorf("key wrapping failed: %w", err)
				}
			}

			if err := os.WriteFile(cCtx.String("key-out"), keyPEM, 0600); err != nil {
				return err
			}
			if err := os.WriteFile(cCtx.String("pub-out"), pubPEM, 0644); err != nil {
				return err
			}

			fmt.Printf("wrote %s and %s\n", cCtx.String("key-out"), cCtx.String("pub-out"))
			return nil
		},
	}
}

func splitCommand() *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Split a secret into encrypted per-guardian share bundles",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret-file", Required: true, Usage: "file holding the secret to split"},
			&cli.StringFlag{Name: "guardians-file", Required: true, Usage: "JSON file listing guardians: address, weight, pubkey_file"},
			&cli.Uint64Flag{Name: "threshold", Required: true, Usage: "approval weight required to reconstruct"},
			&cli.StringFlag{Name: "out-dir", Value: ".", Usage: "directory for the encrypted bundles"},
			&cli.StringFlag{Name: "signing-key", Value: "", Usage: "owner private key; signs each bundle so guardians can verify provenance"},
		},
		Action: func(cCtx *cli.Context) error {
			secret, err := os.ReadFile(cCtx.String("secret-file"))
			if err != nil {
				return err
			}

			guardiansData, err := os.ReadFile(cCtx.String("guardians-file"))
			if err != nil {
				return err
			}
			var specs []guardianSpec
			if err := json.Unmarshal(guardiansData, &specs); err != nil {
				return fmt.Errorf("could not parse guardians file: %w", err)
			}

			threshold := cCtx.Uint64("threshold")
			var totalWeight uint64
			for _, spec := range specs {
				totalWeight += spec.Weight
			}

			// One share per unit of weight; a guardian of weight w holds a
			// bundle of w shares.
			shares, err := shamir.Split(secret, int(threshold), int(totalWeight))
			if err != nil {
				return fmt.Errorf("split failed: %w", err)
			}

			next := 0
			for _, spec := range specs {
				addr, err := interfaces.NewAccountAddressFromHex(spec.Address)
				if err != nil {
					return fmt.Errorf("guardian %s: %w", spec.Address, err)
				}

				pubPEM, err := os.ReadFile(spec.PubkeyFile)
				if err != nil {
					return fmt.Errorf("guardian %s: %w", spec.Address, err)
				}

				bundle := shamir.EncodeShareBundle(shares[next : next+int(spec.Weight)])
				next += int(spec.Weight)

				encrypted, err := cryptoutils.EncryptWithPublicKey(pubPEM, []byte(bundle))
				if err != nil {
					return fmt.Errorf("guardian %s: encryption failed: %w", spec.Address, err)
				}

				outFile := filepath.Join(cCtx.String("out-dir"), addr.String()+".share")
				encoded := base64.StdEncoding.EncodeToString(encrypted)
				if err := os.WriteFile(outFile, []byte(encoded), 0600); err != nil {
					return err
				}

				if signingKeyFile := cCtx.String("signing-key"); signingKeyFile != "" {
					signingKey, err := os.ReadFile(signingKeyFile)
					if err != nil {
						return err
					}
					signature, err := cryptoutils.SignShare(signingKey, encrypted)
					if err != nil {
						return fmt.Errorf("guardian %s: signing failed: %w", spec.Address, err)
					}
					sigEncoded := base64.StdEncoding.EncodeToString(signature)
					if err := os.WriteFile(outFile+".sig", []byte(sigEncoded), 0644); err != nil {
						return err
					}
				}

				fmt.Printf("wrote %s (weight %d)\n", outFile, spec.Weight)
			}

			return nil
		},
	}
}

func initiateCommand() *cli.Command {
	return &cli.Command{
		Name:  "initiate",
		Usage: "Open a recovery session",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			&cli.StringFlag{Name: "owner", Required: true, Usage: "owner account address"},
			&cli.StringFlag{Name: "new-owner", Required: true, Usage: "account to recover ownership to"},
			&cli.StringFlag{Name: "initiator", Required: true, Usage: "initiating owner or guardian address"},
		},
		Action: func(cCtx *cli.Context) error {
			owner, err := interfaces.NewAccountAddressFromHex(cCtx.String("owner"))
			if err != nil {
				return err
			}
			newOwner, err := interfaces.NewAccountAddressFromHex(cCtx.String("new-owner"))
			if err != nil {
				return err
			}
			initiator, err := interfaces.NewAccountAddressFromHex(cCtx.String("initiator"))
			if err != nil {
				return err
			}

			client := &clients.RecoveryClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
			session, err := client.Initiate(&api.InitiateRecoveryRequest{
				Owner:     owner,
				NewOwner:  newOwner,
				Initiator: initiator,
			})
			if err != nil {
				return err
			}

			return printJSON(session)
		},
	}
}

func submitCommand() *cli.Command {
	return &cli.Command{
		Name:  "submit",
		Usage: "Decrypt a share bundle and submit it to a session",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			&cli.StringFlag{Name: "session", Required: true, Usage: "session id"},
			&cli.StringFlag{Name: "guardian", Required: true, Usage: "guardian account address"},
			&cli.StringFlag{Name: "key-file", Required: true, Usage: "guardian private key file"},
			&cli.StringFlag{Name: "share-file", Required: true, Usage: "encrypted share bundle file"},
			&cli.StringFlag{Name: "passphrase", Value: "", Usage: "passphrase the private key was wrapped under"},
			&cli.StringFlag{Name: "owner-pub", Value: "", Usage: "owner public key; verifies the bundle's signature file before submitting"},
		},
		Action: func(cCtx *cli.Context) error {
			guardianAddr, err := interfaces.NewAccountAddressFromHex(cCtx.String("guardian"))
			if err != nil {
				return err
			}

			keyPEM, err := os.ReadFile(cCtx.String("key-file"))
			if err != nil {
				return err
			}
			if passphrase := cCtx.String("passphrase"); passphrase != "" {
				keyPEM, err = cryptoutils.UnwrapWithPassphrase([]byte(passphrase), keyPEM)
				if err != nil {
					return fmt.Errorf("key unwrapping failed: %w", err)
				}
			}

			encoded, err := os.ReadFile(cCtx.String("share-file"))
			if err != nil {
				return err
			}
			encrypted, err := base64.StdEncoding.DecodeString(string(encoded))
			if err != nil {
				return fmt.Errorf("could not decode share file: %w", err)
			}

			if ownerPubFile := cCtx.String("owner-pub"); ownerPubFile != "" {
				ownerPub, err := os.ReadFile(ownerPubFile)
				if err != nil {
					return err
				}
				sigEncoded, err := os.ReadFile(cCtx.String("share-file") + ".sig")
				if err != nil {
					return fmt.Errorf("could not read signature file: %w", err)
				}
				signature, err := base64.StdEncoding.DecodeString(string(sigEncoded))
				if err != nil {
					return fmt.Errorf("could not decode signature file: %w", err)
				}
				if err := cryptoutils.VerifyShareSignature(ownerPub, encrypted, signature); err != nil {
					return fmt.Errorf("bundle provenance check failed: %w", err)
				}
			}

			bundle, err := cryptoutils.DecryptWithPrivateKey(keyPEM, encrypted)
			if err != nil {
				return fmt.Errorf("share decryption failed: %w", err)
			}

			client := &clients.RecoveryClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
			session, err := client.SubmitShare(cCtx.String("session"), &api.SubmitShareRequest{
				Guardian:       guardianAddr,
				EncryptedShare: bundle,
			})
			if err != nil {
				return err
			}

			return printJSON(session)
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show a session, or an owner's active session",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			&cli.StringFlag{Name: "session", Usage: "session id"},
			&cli.StringFlag{Name: "owner", Usage: "owner account address"},
		},
		Action: func(cCtx *cli.Context) error {
			client := &clients.RecoveryClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}

			if sessionID := cCtx.String("session"); sessionID != "" {
				session, err := client.Session(sessionID)
				if err != nil {
					return err
				}
				return printJSON(session)
			}

			if ownerHex := cCtx.String("owner"); ownerHex != "" {
				owner, err := interfaces.NewAccountAddressFromHex(ownerHex)
				if err != nil {
					return err
				}
				session, err := client.ActiveSession(owner)
				if err != nil {
					return err
				}
				return printJSON(session)
			}

			return cli.Exit("either --session or --owner is required", 1)
		},
	}
}

func readinessCommand() *cli.Command {
	return &cli.Command{
		Name:  "readiness",
		Usage: "Poll whether a session is executable",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			&cli.StringFlag{Name: "session", Required: true, Usage: "session id"},
		},
		Action: func(cCtx *cli.Context) error {
			client := &clients.RecoveryClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
			readiness, err := client.Readiness(cCtx.String("session"))
			if err != nil {
				return err
			}
			return printJSON(readiness)
		},
	}
}

func executeCommand() *cli.Command {
	return &cli.Command{
		Name:  "execute",
		Usage: "Reconstruct the secret from the collected shares",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			&cli.StringFlag{Name: "session", Required: true, Usage: "session id"},
			&cli.StringFlag{Name: "secret-out", Value: "", Usage: "write the secret to this file instead of stdout"},
		},
		Action: func(cCtx *cli.Context) error {
			client := &clients.RecoveryClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
			result, err := client.Execute(cCtx.String("session"))
			if err != nil {
				return err
			}

			if out := cCtx.String("secret-out"); out != "" {
				if err := os.WriteFile(out, result.Secret, 0600); err != nil {
					return err
				}
				fmt.Printf("wrote secret to %s\n", out)
				return printJSON(result.Session)
			}

			os.Stdout.Write(result.Secret)
			return nil
		},
	}
}

func cancelCommand() *cli.Command {
	return &cli.Command{
		Name:  "cancel",
		Usage: "Abort a recovery session",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			&cli.StringFlag{Name: "session", Required: true, Usage: "session id"},
			&cli.StringFlag{Name: "caller", Required: true, Usage: "owner or guardian address"},
		},
		Action: func(cCtx *cli.Context) error {
			caller, err := interfaces.NewAccountAddressFromHex(cCtx.String("caller"))
			if err != nil {
				return err
			}

			client := &clients.RecoveryClient{ServerAddr: cCtx.String(flags.ServerAddrFlag.Name)}
			session, err := client.Cancel(cCtx.String("session"), &api.CancelRequest{Caller: caller})
			if err != nil {
				return err
			}
			return printJSON(session)
		},
	}
}

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Resolve recovery-service endpoints from the ledger",
		Flags: []cli.Flag{
			flags.RPCAddrFlag,
			flags.RegistryContractFlag,
			&cli.StringFlag{Name: "dns-addr", Value: "", Usage: "DNS resolver address, defaults to the local stub resolver"},
		},
		Action: func(cCtx *cli.Context) error {
			contract := common.HexToAddress(cCtx.String(flags.RegistryContractFlag.Name))

			ethClient, err := ethclient.Dial(cCtx.String(flags.RPCAddrFlag.Name))
			if err != nil {
				return fmt.Errorf("failed to dial RPC: %w", err)
			}

			registryClient, err := registry.NewOnchainRegistryClient(ethClient, ethClient, contract)
			if err != nil {
				return err
			}

			resolver := serviceresolver.NewResolver(registryClient, cCtx.String("dns-addr"))
			service, err := resolver.ResolveRecoveryService()
			if err != nil {
				return err
			}
			return printJSON(service)
		},
	}
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
