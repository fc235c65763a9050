package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"confprog/internal/auth"
)

// runAddUser registers an account from the command line.
func runAddUser(args []string) error {
	var flags flagConfig
	fs := flag.NewFlagSet("add-user", flag.ExitOnError)
	registerCommonFlags(fs, &flags)
	email := fs.String("email", "", "Account email")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: confprog add-user -email EMAIL [-config PATH]\n\n")
		fmt.Fprintf(os.Stderr, "Registers an account (Argon2id password hash in the document store).\n")
		fmt.Fprintf(os.Stderr, "The password is read from the terminal, or from stdin when piped.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fs.Usage()
		return errors.New("email is required")
	}

	ctx := context.Background()
	a, err := bootstrap(ctx, flags.configPath)
	if err != nil {
		return err
	}
	defer a.close()

	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}

	id, err := a.provider.Register(ctx, *email, password)
	if err != nil {
		if code := auth.CodeOf(err); code != "" {
			return fmt.Errorf("%s (%s)", auth.Translate(code), code)
		}
		return err
	}
	fmt.Printf("registered %s (user id %s)\n", id.Email, id.UserID)
	return nil
}

// readPassword prompts twice on a terminal; piped input is read as one line.
func readPassword(in *os.File) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Enter password:   ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	confirm, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if string(pw) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(pw), nil
}
