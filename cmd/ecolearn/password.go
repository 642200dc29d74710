package main

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type passwordSource struct {
	value     string
	fromStdin bool
	confirm   bool
}

// resolvePassword takes the password from --password, from stdin, or prompts
// for it on a terminal.
func resolvePassword(cmd *cobra.Command, src passwordSource) (string, error) {
	if src.fromStdin && src.value != "" {
		return "", errors.New("--password-stdin and --password are mutually exclusive")
	}
	if src.value != "" {
		return src.value, nil
	}
	if src.fromStdin {
		raw, err := readFirstLine(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		password := strings.TrimRight(raw, "\r\n")
		if password == "" {
			return "", errors.New("password is empty")
		}
		return password, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no password provided (use --password, --password-stdin, or run in a terminal)")
	}

	cmd.Print("Password: ")
	pass1, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", err
	}
	if len(pass1) == 0 {
		return "", errors.New("password is empty")
	}
	if !src.confirm {
		return string(pass1), nil
	}

	cmd.Print("Confirm password: ")
	pass2, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", err
	}
	if string(pass1) != string(pass2) {
		return "", errors.New("passwords do not match")
	}
	return string(pass1), nil
}

func readFirstLine(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok {
		in, err := f.Stat()
		if err != nil {
			return "", err
		}
		if in.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("stdin is a terminal; omit --password-stdin to prompt")
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return scanner.Text(), nil
}
