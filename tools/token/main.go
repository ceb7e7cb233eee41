package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"entsoe-etl/internal/auth"
)

func main() {
	subject := flag.String("subject", "etl-operator", "token subject")
	role := flag.String("role", string(auth.RoleViewer), "viewer, operator or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("AUTH_JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_JWT_SECRET is required")
		os.Exit(2)
	}
	normalized, ok := auth.NormalizeRole(*role)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid role %q\n", *role)
		os.Exit(2)
	}
	token, err := auth.IssueJWT([]byte(secret), *subject, normalized, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
