package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"giggen/pkg/config"
	"giggen/pkg/supabase"
)

// mintoken prints a Supabase-shaped access token for local API calls.
func main() {
	var (
		userID = flag.String("user", "", "profile id to put in the sub claim")
		email  = flag.String("email", "", "optional email claim")
		ttl    = flag.Duration("ttl", time.Hour, "token lifetime")
		secret = flag.String("secret", "", "SUPABASE_JWT_SECRET (defaults to env/.env)")
	)
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}

	cfg := config.Load()
	if *secret == "" {
		*secret = cfg.Supabase.JWTSecret
	}
	if *secret == "" {
		fmt.Fprintln(os.Stderr, "missing -secret (or SUPABASE_JWT_SECRET in env/.env)")
		os.Exit(2)
	}

	tok, err := supabase.MintAccessToken(*userID, *email, cfg.Supabase.Audience, *secret, time.Now(), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
