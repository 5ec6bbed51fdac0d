package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/noah-isme/backend-lavault/internal/auth"
	"github.com/noah-isme/backend-lavault/internal/config"
)

// sessiontoken mints a session token signed with SESSION_SECRET so the
// checkout route can be exercised without the web front-end.
func main() {
	userID := flag.String("user", "", "user id placed in the token subject")
	email := flag.String("email", "", "email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessiontoken: %v\n", err)
		os.Exit(2)
	}
	svc, err := auth.NewService(auth.Config{
		Secret:    cfg.SessionSecret,
		Issuer:    cfg.SessionIssuer,
		Audience:  cfg.SessionAudience,
		ClockSkew: cfg.SessionClockSkew,
		TokenTTL:  *ttl,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessiontoken: %v\n", err)
		os.Exit(2)
	}
	token, expiresAt, err := svc.IssueToken(auth.Session{UserID: *userID, Email: *email})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessiontoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s; send as cookie %s or Authorization: Bearer\n", expiresAt.Format(time.RFC3339), cfg.SessionCookieName)
	fmt.Println(token)
}
