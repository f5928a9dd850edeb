// heshactl is a thin CLI over the protocol library: generate keypairs, call
// an issuer's /attest endpoint, verify an attestation offline, and run a
// local challenge/response demo. Its internals are out of scope; it exists
// only to exercise the library the way a real operator or wallet would.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/heshaorg/hesha/pkg/challenge"
	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/keydiscovery"
	"github.com/heshaorg/hesha/pkg/verifier"
)

func main() {
	app := &cli.App{
		Name:  "heshactl",
		Usage: "generate keys, request attestations, and verify them offline",
		Commands: []*cli.Command{
			keygenCommand(),
			attestCommand(),
			verifyCommand(),
			challengeCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate a fresh Ed25519 keypair",
		Action: func(ctx *cli.Context) error {
			key, err := domain.GeneratePrivateKey()
			if err != nil {
				return cli.Exit(err, 1)
			}
			fmt.Printf("private_key_hex: %x\n", key.Seed())
			fmt.Printf("public_key_b64:  %s\n", key.Public().String())
			return nil
		},
	}
}

func attestCommand() *cli.Command {
	return &cli.Command{
		Name:  "attest",
		Usage: "call an issuer's POST /attest endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "issuer-url", Required: true, Usage: "base URL of the issuer, e.g. https://issuer.example"},
			&cli.StringFlag{Name: "phone", Required: true},
			&cli.StringFlag{Name: "pubkey", Required: true, Usage: "base64url-encoded user public key"},
			&cli.StringFlag{Name: "scope", Value: "1"},
		},
		Action: func(ctx *cli.Context) error {
			body, err := json.Marshal(map[string]string{
				"phone_number": ctx.String("phone"),
				"user_pubkey":  ctx.String("pubkey"),
				"scope":        ctx.String("scope"),
			})
			if err != nil {
				return cli.Exit(err, 1)
			}

			httpCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(httpCtx, http.MethodPost, ctx.String("issuer-url")+"/attest", bytes.NewReader(body))
			if err != nil {
				return cli.Exit(err, 1)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return cli.Exit(err, 1)
			}
			if resp.StatusCode >= 400 {
				return cli.Exit(fmt.Sprintf("issuer returned %d: %s", resp.StatusCode, respBody), 1)
			}
			fmt.Println(string(respBody))
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "verify an attestation token offline against its issuer's published key",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "token", Required: true},
			&cli.StringFlag{Name: "expected-subject"},
		},
		Action: func(ctx *cli.Context) error {
			resolver := keydiscovery.New(nil)
			v := verifier.VerifyAttestation(context.Background(), ctx.String("token"), resolver, verifier.Options{
				ExpectedSubject: ctx.String("expected-subject"),
			})
			if !v.Ok() {
				return cli.Exit(fmt.Sprintf("verification failed: %s", v.Err), 1)
			}
			fmt.Printf("OK subject=%s issuer=%s key_id=%s expires_at=%s\n",
				v.Info.Subject, v.Info.Issuer, v.Info.KeyID, v.Info.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

func challengeCommand() *cli.Command {
	return &cli.Command{
		Name:  "challenge",
		Usage: "run a local challenge/response demo between a service and a wallet",
		Subcommands: []*cli.Command{
			{
				Name:  "demo",
				Usage: "mint a challenge, sign it as the wallet, and verify it as the service",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "service-id", Value: "app.example"},
					&cli.StringFlag{Name: "proxy", Required: true},
				},
				Action: func(ctx *cli.Context) error {
					proxy, err := domain.NewProxyNumber(ctx.String("proxy"))
					if err != nil {
						return cli.Exit(err, 1)
					}
					userKey, err := domain.GeneratePrivateKey()
					if err != nil {
						return cli.Exit(err, 1)
					}

					c, err := challenge.New(ctx.String("service-id"), proxy, 0, "")
					if err != nil {
						return cli.Exit(err, 1)
					}

					ts := time.Now().Unix()
					sig := challenge.Sign(userKey, c, ts)
					resp := challenge.Response{Signature: sig, Timestamp: ts}

					tracker := challenge.NewTracker()
					err = tracker.Verify(c, resp, userKey.Public(), time.Now(), func() error { return nil })
					if err != nil {
						return cli.Exit(err, 1)
					}
					fmt.Println("challenge consumed: Ok")

					err = tracker.Verify(c, resp, userKey.Public(), time.Now(), func() error { return nil })
					fmt.Printf("second delivery: %v\n", err)
					return nil
				},
			},
		},
	}
}

