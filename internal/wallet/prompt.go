package wallet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
)

// ErrPromptDeclined is returned by a PromptFunc when the user backs out.
var ErrPromptDeclined = errors.New("password prompt declined")

// PromptFunc asks for the password that unlocks account.
type PromptFunc func(ctx context.Context, account accounts.Account) (string, error)

// StaticPassword always answers with password, declining when it is empty.
func StaticPassword(password string) PromptFunc {
	return func(_ context.Context, _ accounts.Account) (string, error) {
		if password == "" {
			return "", ErrPromptDeclined
		}
		return password, nil
	}
}

// ReaderPrompt reads one line from in after writing a prompt to out.
func ReaderPrompt(in io.Reader, out io.Writer) PromptFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, account accounts.Account) (string, error) {
		return readLine(reader, out, fmt.Sprintf("Password for %s: ", account.Address.Hex()))
	}
}

// ReadNewPassword asks for a password twice and fails when the answers differ.
func ReadNewPassword(in io.Reader, out io.Writer) (string, error) {
	reader := bufio.NewReader(in)
	password, err := readLine(reader, out, "New password: ")
	if err != nil {
		return "", err
	}
	again, err := readLine(reader, out, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if password != again {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func readLine(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", ErrPromptDeclined
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", ErrPromptDeclined
	}
	return line, nil
}
