// Command tally-token mints a bearer token for local development and
// scripted calls against the API. It uses the same AUTH_JWT_SECRET and
// AUTH_ISSUER as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"tally/internal/auth"
	"tally/internal/cli"
	"tally/internal/config"
)

func main() {
	user := flag.String("user", "", "user ID to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: tally-token -user <id> [-ttl 24h]")
		os.Exit(2)
	}
	if len(cfg.AuthJWTSecret) < 16 {
		fmt.Fprintln(os.Stderr, "AUTH_JWT_SECRET must be set to at least 16 characters")
		os.Exit(1)
	}

	token, err := auth.NewSigner(cfg.AuthJWTSecret, cfg.AuthIssuer, *ttl).Sign(*user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
