package credstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Terminal reads answers to prompts. Plain lines and secrets share one
// buffered reader so piped input is consumed in order.
type Terminal struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer

	// fd is the descriptor used for no-echo reads; -1 when input is not a tty.
	fd int
}

// NewTerminal reads from in and writes prompts to out. Secrets are read
// without echo when in is an interactive terminal.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	fd := -1
	if term.IsTerminal(int(in.Fd())) {
		fd = int(in.Fd())
	}
	return &Terminal{in: bufio.NewReader(in), out: out, fd: fd}
}

// NewReaderTerminal reads prompt answers from an arbitrary reader, with echo.
func NewReaderTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, fd: -1}
}

// Interactive reports whether secrets are read without echo.
func (t *Terminal) Interactive() bool {
	return t.fd >= 0
}

// ReadLine prints prompt and returns the next input line, trimmed.
func (t *Terminal) ReadLine(prompt string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}
	return t.readLine()
}

// ReadSecret prints prompt and reads one line without echo when possible.
func (t *Terminal) ReadSecret(prompt string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprint(t.out, prompt); err != nil {
		return "", err
	}
	if t.fd < 0 {
		return t.readLine()
	}

	b, err := term.ReadPassword(t.fd)
	// The newline typed by the user is swallowed along with the echo.
	_, _ = fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptStore asks for the secret on a terminal every time Read is called.
type PromptStore struct {
	terminal *Terminal
	prompt   string
}

var _ Store = (*PromptStore)(nil)

func NewPromptStore(terminal *Terminal, prompt string) (*PromptStore, error) {
	if terminal == nil {
		return nil, fmt.Errorf("terminal cannot be nil")
	}
	if prompt == "" {
		prompt = "Password: "
	}
	return &PromptStore{terminal: terminal, prompt: prompt}, nil
}

func (p *PromptStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v, err := p.terminal.ReadSecret(p.prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if v == "" {
		return "", fmt.Errorf("prompted password: %w", ErrEmpty)
	}
	return v, nil
}
