package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nightvibe/nightvibe/internal/api"
	"github.com/nightvibe/nightvibe/internal/client"
	"github.com/nightvibe/nightvibe/internal/domain"
	"golang.org/x/term"
)

func cmdStatus(ctx context.Context, c *client.Client, opts options) {
	resp, err := c.Status(ctx)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Profile:  %s\n", resp.Profile)
	if resp.LoggedIn && resp.User != nil {
		fmt.Printf("User:     %s <%s>\n", resp.User.Username, resp.User.Email)
	} else {
		fmt.Println("User:     not logged in")
	}
	fmt.Printf("Realtime: %s\n", resp.Realtime)
	if resp.AccountType != "" {
		fmt.Printf("Account:  %s\n", resp.AccountType)
	}
	fmt.Printf("Cache:    %d chats, %d messages\n", resp.ChatCount, resp.MessageCount)
	if !resp.LastChatSync.IsZero() {
		fmt.Printf("Synced:   %s\n", resp.LastChatSync.Local().Format(time.DateTime))
	}
	fmt.Printf("Uptime:   %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
}

// cmdLogin logs in, or signs up when username is set.
func cmdLogin(ctx context.Context, c *client.Client, email, username, accountType string, opts options) {
	password, err := readPassword()
	check(err)

	req := &api.LoginRequest{Email: email, Password: password}
	if username != "" {
		req.Signup = true
		req.Username = username
		req.AccountType = domain.AccountType(accountType)
	}
	resp, err := c.Login(ctx, req)
	check(err)
	if opts.json {
		outputJSON(resp)
		return
	}
	fmt.Printf("Logged in as %s.\n", resp.User.Username)
}

func readPassword() (string, error) {
	if pw := os.Getenv("NIGHTVIBE_PASSWORD"); pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set NIGHTVIBE_PASSWORD")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func cmdAccountType(ctx context.Context, c *client.Client, t string) {
	switch domain.AccountType(t) {
	case domain.AccountUser, domain.AccountVendor, domain.AccountGuide:
	default:
		fmt.Fprintf(os.Stderr, "error: unknown account type %q\n", t)
		os.Exit(1)
	}
	check(c.SetAccountType(ctx, domain.AccountType(t)))
}
