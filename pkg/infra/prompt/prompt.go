package prompt

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mattn/go-isatty"

	"github.com/m-mizutani/shipit/pkg/domain/interfaces"
	"github.com/m-mizutani/shipit/pkg/domain/model"
)

// IsInteractive reports whether stdin is a terminal an operator can answer on
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Terminal asks the operator through interactive terminal forms
type Terminal struct{}

// NewTerminal creates a terminal prompter
func NewTerminal() *Terminal {
	return &Terminal{}
}

var _ interfaces.Prompter = (*Terminal)(nil)

// Confirm blocks until the operator answers. Aborting the form (ctrl-c)
// counts as "no".
func (x *Terminal) Confirm(ctx context.Context, gate model.Gate, question string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, goerr.Wrap(err, "confirmation prompt failed", goerr.V("gate", string(gate)))
	}
	return ok, nil
}

// Input asks for free text, prefilled with defaultValue. Multi-line
// defaults get a text area.
func (x *Terminal) Input(ctx context.Context, title, defaultValue string) (string, error) {
	value := defaultValue

	var field huh.Field
	if strings.Contains(defaultValue, "\n") {
		field = huh.NewText().Title(title).Value(&value)
	} else {
		field = huh.NewInput().Title(title).Value(&value)
	}

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return defaultValue, nil
		}
		return "", goerr.Wrap(err, "input prompt failed", goerr.V("title", title))
	}
	return strings.TrimSpace(value), nil
}

// Static answers every gate from a fixed policy. It is used when nobody is
// at the terminal, e.g. in CI.
type Static struct {
	answers map[model.Gate]bool
}

// NewStatic creates a policy. Gates missing from answers are declined.
func NewStatic(answers map[model.Gate]bool) *Static {
	copied := make(map[model.Gate]bool, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	return &Static{answers: copied}
}

// AutoApprove approves every gate except rollback, which stays an explicit
// opt-in
func AutoApprove(rollback bool) *Static {
	return NewStatic(map[model.Gate]bool{
		model.GateBranch:   true,
		model.GateDirty:    true,
		model.GateProceed:  true,
		model.GateRollback: rollback,
	})
}

var _ interfaces.Prompter = (*Static)(nil)

func (x *Static) Confirm(ctx context.Context, gate model.Gate, question string) (bool, error) {
	ok := x.answers[gate]
	ctxlog.From(ctx).Info("Non-interactive decision", "gate", string(gate), "question", question, "answer", ok)
	return ok, nil
}

// Input always takes the default
func (x *Static) Input(ctx context.Context, title, defaultValue string) (string, error) {
	return defaultValue, nil
}
