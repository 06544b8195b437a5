package portal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// OTPChallenge is an in-progress verification step: the masked delivery
// target the SMS went to. It is created when the portal demands verification
// and discarded once a code is submitted.
type OTPChallenge struct {
	// TargetMask is the portal's masked label for the receiving number.
	TargetMask string
}

// CodePrompter supplies the SMS verification code. The pipeline's only
// suspension point: implementations block until the operator answers, with no
// timeout of their own — the operator may take arbitrary real-world time to
// read the SMS.
type CodePrompter interface {
	Prompt(ctx context.Context, challenge OTPChallenge) (string, error)
}

// StdinPrompter asks the operator on the terminal.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewStdinPrompter prompts on stderr and reads from stdin.
func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *StdinPrompter) Prompt(ctx context.Context, challenge OTPChallenge) (string, error) {
	fmt.Fprintf(p.Out, "\nCheck your phone (%s) for the SMS verification code.\n", challenge.TargetMask)
	fmt.Fprintf(p.Out, "Enter the verification code: ")

	code, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && code == "" {
		return "", fmt.Errorf("reading verification code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errors.New("no verification code entered")
	}
	return code, nil
}
