// Package console implements the platform permission and notification APIs
// on a terminal: prompts are read from an input stream, alerts and toasts
// are written to an output stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mekedron/nearby/internal/permission"
)

var (
	// ErrNoAnswer is returned when the input ends before a prompt is answered.
	ErrNoAnswer = errors.New("no answer on input")
	// ErrSettingsUnsupported is returned when no settings command is configured.
	ErrSettingsUnsupported = errors.New("opening settings is not supported")
	// ErrUnknownAnswer is returned for answers that match no permission choice.
	ErrUnknownAnswer = errors.New("unknown permission answer")
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Console is a terminal bridge for the permission gate.
type Console struct {
	in              *bufio.Reader
	out             io.Writer
	appName         string
	answer          string
	alertChoice     string
	runtimeGranted  bool
	settingsCommand []string
	runCommand      CommandRunner

	mu         sync.Mutex
	readerOnce sync.Once
	lines      chan lineResult
}

// Option applies Console options.
type Option func(*Console)

// WithAnswer presets the answer given to permission prompts, skipping input.
func WithAnswer(answer string) Option {
	return func(c *Console) {
		c.answer = strings.TrimSpace(answer)
	}
}

// WithAlertChoice presets the button picked on multi-button alerts, by text
// or 1-based position.
func WithAlertChoice(choice string) Option {
	return func(c *Console) {
		c.alertChoice = strings.TrimSpace(choice)
	}
}

// WithRuntimeGranted makes runtime permission checks report an existing grant.
func WithRuntimeGranted(granted bool) Option {
	return func(c *Console) {
		c.runtimeGranted = granted
	}
}

// WithSettingsCommand sets the command run to open location settings.
func WithSettingsCommand(command []string) Option {
	return func(c *Console) {
		c.settingsCommand = nil
		for _, part := range command {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				c.settingsCommand = append(c.settingsCommand, trimmed)
			}
		}
	}
}

// WithCommandRunner replaces the external command runner.
func WithCommandRunner(runner CommandRunner) Option {
	return func(c *Console) {
		if runner != nil {
			c.runCommand = runner
		}
	}
}

// WithAppName sets the application name shown in prompts.
func WithAppName(name string) Option {
	return func(c *Console) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			c.appName = trimmed
		}
	}
}

// New creates a console reading answers from in and writing notices to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		in:         bufio.NewReader(in),
		out:        out,
		appName:    "nearby",
		runCommand: execCommand,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bridges returns the console wired into every permission bridge slot.
func (c *Console) Bridges() permission.Bridges {
	return permission.Bridges{
		Authorizer: c,
		Runtime:    c,
		Notifier:   c,
		Settings:   c,
	}
}

// RequestAuthorization implements permission.Authorizer.
func (c *Console) RequestAuthorization(ctx context.Context, level permission.AuthorizationLevel) (permission.AuthorizationStatus, error) {
	scope := "while using the app"
	if level == permission.AuthorizationAlways {
		scope = "always"
	}
	answer, err := c.promptAnswer(ctx, fmt.Sprintf("Allow %q to use your location %s? [allow/deny]: ", c.appName, scope))
	if err != nil {
		return "", err
	}
	switch answer {
	case "allow", "granted", "yes", "y":
		return permission.AuthorizationGranted, nil
	case "deny", "denied", "no", "n":
		return permission.AuthorizationDenied, nil
	case "disabled", "off":
		return permission.AuthorizationDisabled, nil
	case "restricted":
		return permission.AuthorizationRestricted, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAnswer, answer)
	}
}

// Check implements permission.RuntimePermissions.
func (c *Console) Check(ctx context.Context, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.runtimeGranted, nil
}

// Request implements permission.RuntimePermissions.
func (c *Console) Request(ctx context.Context, name string) (permission.RequestResult, error) {
	answer, err := c.promptAnswer(ctx, fmt.Sprintf("Allow %q to access %s? [allow/deny/never]: ", c.appName, name))
	if err != nil {
		return "", err
	}
	switch answer {
	case "allow", "granted", "yes", "y":
		return permission.RequestGranted, nil
	case "deny", "denied", "no", "n":
		return permission.RequestDenied, nil
	case "never", "never_ask_again", "never-ask-again":
		return permission.RequestNeverAskAgain, nil
	default:
		return permission.RequestResult(answer), nil
	}
}

// Alert implements permission.Notifier. With several buttons the user picks
// one; on missing input the last button is used.
func (c *Console) Alert(ctx context.Context, alert permission.Alert) {
	c.printf("[alert] %s", alert.Title)
	if alert.Message != "" {
		c.printf("        %s", alert.Message)
	}
	if len(alert.Buttons) == 0 {
		return
	}
	chosen := alert.Buttons[len(alert.Buttons)-1]
	if len(alert.Buttons) > 1 {
		for idx, button := range alert.Buttons {
			c.printf("  %d) %s", idx+1, button.Text)
		}
		if picked, ok := c.pickButton(ctx, alert.Buttons); ok {
			chosen = alert.Buttons[picked]
		}
	}
	if chosen.OnPress != nil {
		chosen.OnPress(ctx)
	}
}

// Toast implements permission.Notifier.
func (c *Console) Toast(message string, duration time.Duration) {
	c.printf("[toast %s] %s", duration, message)
}

// OpenSettings implements permission.SettingsOpener.
func (c *Console) OpenSettings(ctx context.Context) error {
	if len(c.settingsCommand) == 0 {
		return ErrSettingsUnsupported
	}
	if err := c.runCommand(ctx, c.settingsCommand[0], c.settingsCommand[1:]...); err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	return nil
}

func (c *Console) pickButton(ctx context.Context, buttons []permission.AlertButton) (int, bool) {
	choice := c.alertChoice
	if choice == "" {
		line, err := c.readLine(ctx, "Choose an option: ")
		if err != nil {
			return 0, false
		}
		choice = line
	}
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(buttons) {
		return n - 1, true
	}
	for idx, button := range buttons {
		if strings.EqualFold(button.Text, choice) {
			return idx, true
		}
	}
	return 0, false
}

func (c *Console) promptAnswer(ctx context.Context, prompt string) (string, error) {
	if c.answer != "" {
		return strings.ToLower(c.answer), nil
	}
	line, err := c.readLine(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.ToLower(line), nil
}

type lineResult struct {
	line string
	err  error
}

// readLine prompts and waits for one line, giving up when ctx is done. A
// line typed after a canceled prompt answers the next one.
func (c *Console) readLine(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.out, prompt); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	c.readerOnce.Do(c.startReader)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-c.lines:
		if !ok {
			return "", ErrNoAnswer
		}
		line := strings.TrimSpace(res.line)
		if res.err != nil && (!errors.Is(res.err, io.EOF) || line == "") {
			if errors.Is(res.err, io.EOF) {
				return "", ErrNoAnswer
			}
			return "", fmt.Errorf("read answer: %w", res.err)
		}
		return line, nil
	}
}

// startReader runs the only goroutine that reads c.in. It stops after the
// first read error and closes lines.
func (c *Console) startReader() {
	c.lines = make(chan lineResult, 1)
	go func() {
		defer close(c.lines)
		for {
			line, err := c.in.ReadString('\n')
			c.lines <- lineResult{line: line, err: err}
			if err != nil {
				return
			}
		}
	}()
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format+"\n", args...)
}

func execCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}
