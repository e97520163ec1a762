package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"giggen/internal/booking"
	"giggen/internal/profile"
	"giggen/pkg/config"
	"giggen/pkg/db"
	"giggen/pkg/supabase"
)

// devflow seeds two profiles and a concept, then walks one booking from
// request to upcoming through the HTTP API.
func main() {
	var (
		apiURL   = flag.String("api-url", "", "API base url (defaults to http://localhost<HTTP_ADDR>)")
		sender   = flag.String("sender", "dev-sender", "sender profile id")
		receiver = flag.String("receiver", "dev-receiver", "receiver profile id")
		concept  = flag.String("concept", "dev-concept", "concept id owned by the sender")
		private  = flag.Bool("private", false, "publish without listing the booking publicly")
	)
	flag.Parse()

	cfg := config.Load()
	if *apiURL == "" {
		*apiURL = defaultAPIURL(cfg.HTTPAddr)
	}

	ctx := context.Background()

	// With STORAGE=memory the API seeds the same dev profiles itself.
	if cfg.Storage != "memory" {
		if err := seed(ctx, cfg, *sender, *receiver, *concept); err != nil {
			fmt.Fprintf(os.Stderr, "seed: %v\n", err)
			os.Exit(1)
		}
	}

	c := client{base: strings.TrimSuffix(*apiURL, "/"), cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}

	starts := time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Hour)
	ends := starts.Add(3 * time.Hour)
	var created struct {
		Booking booking.Booking `json:"booking"`
	}
	c.must(*sender, http.MethodPost, "/v1/bookings", map[string]any{
		"receiverId": *receiver,
		"terms": booking.Terms{
			Title:     "Devflow gig",
			ConceptID: *concept,
			Venue:     "Local club",
			StartsAt:  &starts,
			EndsAt:    &ends,
		},
	}, &created)
	id := created.Booking.ID
	fmt.Printf("created booking_id=%s status=%s\n", id, created.Booking.Status)

	steps := []struct {
		actor string
		path  string
		body  any
	}{
		{*receiver, "/allow", nil},
		{*sender, "/approve", nil},
		{*receiver, "/approve", nil},
		{*sender, "/publish", map[string]any{"makePublic": !*private}},
	}
	for _, s := range steps {
		var out struct {
			Booking booking.Booking `json:"booking"`
		}
		c.must(s.actor, http.MethodPost, "/v1/bookings/"+id+s.path, s.body, &out)
		fmt.Printf("%-9s by %-14s -> status=%s public=%t\n",
			strings.TrimPrefix(s.path, "/"), s.actor, out.Booking.Status, out.Booking.IsPublic())
	}

	fmt.Printf("\nNext steps:\n")
	fmt.Printf("- Timeline:  GET %s/v1/bookings/%s/events\n", c.base, id)
	fmt.Printf("- Live feed: GET %s/v1/bookings/stream?bookingId=%s\n", c.base, id)
}

func seed(ctx context.Context, cfg config.Config, sender, receiver, concept string) error {
	pool, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if _, err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	profiles := profile.NewRepository(pool)
	for id, role := range map[string]string{sender: profile.RoleMaker, receiver: profile.RoleGoer} {
		if _, err := profiles.Upsert(ctx, id, id, role); err != nil {
			return fmt.Errorf("upsert profile %s: %w", id, err)
		}
	}
	if err := profiles.UpsertConcept(ctx, booking.Concept{ID: concept, OwnerID: sender, Title: "Dev concept"}); err != nil {
		return fmt.Errorf("upsert concept: %w", err)
	}
	return nil
}

type client struct {
	base string
	cfg  config.Config
	http *http.Client
}

func (c client) must(userID, method, path string, body, out any) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "new request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")

	// Without a JWT secret the API only accepts the dev X-User-Id header.
	if c.cfg.Supabase.JWTSecret != "" {
		tok, err := supabase.MintAccessToken(userID, "", c.cfg.Supabase.Audience, c.cfg.Supabase.JWTSecret, time.Now(), time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	} else {
		req.Header.Set("X-User-Id", userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", method, path, err)
		fmt.Fprintf(os.Stderr, "tip: is the API running, and is HTTP_ADDR set correctly? api_url=%s\n", c.base)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "%s %s status=%d body=%s\n", method, path, resp.StatusCode, string(b))
		os.Exit(1)
	}
	if out != nil && len(b) > 0 {
		if err := json.Unmarshal(b, out); err != nil {
			fmt.Fprintf(os.Stderr, "decode %s: %v\n", path, err)
			os.Exit(1)
		}
	}
}

func defaultAPIURL(httpAddr string) string {
	// httpAddr is typically ":8081" or "0.0.0.0:8081".
	addr := strings.TrimSpace(httpAddr)
	if addr == "" {
		addr = ":8081"
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return "http://localhost" + strings.TrimPrefix(addr, "0.0.0.0")
	}
	return "http://" + addr
}
