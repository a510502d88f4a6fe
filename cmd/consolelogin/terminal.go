package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MrEthical07/consolelogin"
)

var errQuit = errors.New("quit")

// terminal drives one Flow from line-oriented input.
type terminal struct {
	flow     *consolelogin.Flow
	in       *bufio.Scanner
	out      io.Writer
	redirect string
}

func newTerminal(in io.Reader, out io.Writer) *terminal {
	return &terminal{in: bufio.NewScanner(in), out: out}
}

// Navigate records the redirect target and ends the loop.
func (t *terminal) Navigate(url string) {
	t.redirect = url
}

// Notify prints the notice once.
func (t *terminal) Notify(n consolelogin.Notice) {
	fmt.Fprintf(t.out, "[%s] %s\n", n.Level, n.Message)
}

func (t *terminal) run(ctx context.Context) error {
	fmt.Fprintln(t.out, "commands: :back :resend :countries :country <id> :retry-countries :quit")
	for {
		if t.redirect != "" {
			fmt.Fprintf(t.out, "signed in, redirecting to %s\n", t.redirect)
			return nil
		}

		state := t.flow.State()
		fmt.Fprint(t.out, prompt(state))
		if !t.in.Scan() {
			if err := t.in.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		line := strings.TrimSpace(t.in.Text())

		var err error
		if strings.HasPrefix(line, ":") {
			err = t.command(ctx, state, line)
		} else {
			err = t.submit(ctx, state, line)
		}
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil && consolelogin.ErrorClass(err) == consolelogin.KindFlow {
			fmt.Fprintf(t.out, "! %v\n", err)
		}
	}
}

func prompt(s consolelogin.SessionState) string {
	country := "-"
	if s.SelectedCountry != nil {
		country = s.SelectedCountry.Name + " " + s.SelectedCountry.PhoneCode
	}
	switch s.Step {
	case consolelogin.StepIdentifier:
		return fmt.Sprintf("[%s] email or phone: ", country)
	case consolelogin.StepVerify:
		if s.IsPinLogin {
			return "PIN: "
		}
		return "password: "
	case consolelogin.StepVerifyOTP:
		return "verification code: "
	case consolelogin.StepSetupPassword:
		if s.NewPassword == "" {
			return "new password: "
		}
		return "confirm password: "
	default:
		return "> "
	}
}

func (t *terminal) submit(ctx context.Context, s consolelogin.SessionState, line string) error {
	switch s.Step {
	case consolelogin.StepIdentifier:
		t.flow.SetIdentifier(line)
		return t.flow.SubmitIdentifier(ctx)
	case consolelogin.StepVerify:
		if s.IsPinLogin {
			t.flow.SetPIN(line)
		} else {
			t.flow.SetPassword(line)
		}
		return t.flow.SubmitVerify(ctx)
	case consolelogin.StepVerifyOTP:
		t.flow.SetOTP(line)
		return t.flow.SubmitOTP(ctx)
	case consolelogin.StepSetupPassword:
		if s.NewPassword == "" {
			t.flow.SetNewPassword(line)
			return nil
		}
		t.flow.SetConfirmPassword(line)
		err := t.flow.SubmitSetup(ctx)
		if err != nil {
			// ask for both fields again
			t.flow.SetNewPassword("")
			t.flow.SetConfirmPassword("")
		}
		return err
	}
	return nil
}

func (t *terminal) command(ctx context.Context, s consolelogin.SessionState, line string) error {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	switch name {
	case "quit", "q":
		return errQuit
	case "back":
		return t.flow.Back()
	case "resend":
		return t.flow.ResendOTP(ctx)
	case "countries":
		for _, c := range s.Countries {
			marker := " "
			if s.SelectedCountry != nil && s.SelectedCountry.ID == c.ID {
				marker = "*"
			}
			fmt.Fprintf(t.out, "%s %-4s %-20s %s %s\n", marker, c.ID, c.Name, c.PhoneCode, c.Currency.Code)
		}
		return nil
	case "country":
		if err := t.flow.SelectCountry(ctx, strings.TrimSpace(arg)); err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
		}
		return nil
	case "retry-countries":
		return t.flow.LoadCountries(ctx)
	default:
		fmt.Fprintf(t.out, "! unknown command %q\n", name)
		return nil
	}
}
