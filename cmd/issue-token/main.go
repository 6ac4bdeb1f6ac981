package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/service"
	"golang.org/x/term"
)

func main() {
	var subject string
	var ttl time.Duration
	flag.StringVar(&subject, "subject", "", "Operator name recorded in the token")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (default JWT_EXPIRY_HOURS)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	if os.Getenv("JWT_SECRET") == "" {
		if !term.IsTerminal(int(syscall.Stdin)) {
			fmt.Fprintln(os.Stderr, "Error: JWT_SECRET is not set")
			os.Exit(1)
		}
		fmt.Fprint(os.Stderr, "Enter JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error reading secret")
			os.Exit(1)
		}
		cfg.JWTSecret = strings.TrimSpace(string(secret))
	}
	if len(cfg.JWTSecret) < 16 {
		fmt.Fprintln(os.Stderr, "Error: JWT secret must be at least 16 characters")
		os.Exit(1)
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -subject is required")
		os.Exit(1)
	}
	if ttl <= 0 {
		ttl = cfg.JWTExpiry
	}

	// ─── Issue Token ───────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg).GenerateAdminTokenWithExpiry(subject, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error issuing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
