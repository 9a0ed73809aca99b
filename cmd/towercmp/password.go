package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptPassword asks for the password of username. A terminal input is
// read without echo; anything else is read up to the first newline.
func promptPassword(in io.Reader, out io.Writer, username string) (string, error) {
	fmt.Fprintf(out, "Enter the password for %s: ", username)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	if err != nil && line == "" {
		return "", errors.New("read password: no input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
