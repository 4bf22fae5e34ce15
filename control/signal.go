package control

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"golang.org/x/term"

	"go.viam.com/gatekeeper/logging"
)

// A TerminationSignal is polled once per loop iteration; once it reports true the loop stops
// before reading another frame.
type TerminationSignal interface {
	Requested() bool
}

// SignalFunc adapts a function to the TerminationSignal interface.
type SignalFunc func() bool

// Requested calls f.
func (f SignalFunc) Requested() bool {
	return f()
}

// ContextSignal is requested once ctx is done.
func ContextSignal(ctx context.Context) TerminationSignal {
	return SignalFunc(func() bool {
		return ctx.Err() != nil
	})
}

// AnySignal is requested when any of its signals is.
type AnySignal []TerminationSignal

// Requested reports whether any non-nil signal is requested.
func (signals AnySignal) Requested() bool {
	for _, s := range signals {
		if s != nil && s.Requested() {
			return true
		}
	}
	return false
}

// KeypressSignal is requested when a line starting with q is read from its input.
type KeypressSignal struct {
	requested atomic.Bool
}

// NewKeypressSignal watches r in the background until it is exhausted.
func NewKeypressSignal(r io.Reader, logger logging.Logger) *KeypressSignal {
	ks := &KeypressSignal{}
	utils.PanicCapturingGo(func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if strings.HasPrefix(line, "q") {
				logger.Info("quit requested from keyboard")
				ks.requested.Store(true)
				return
			}
		}
	})
	return ks
}

// NewTerminalKeypressSignal watches stdin, which must be an interactive terminal.
func NewTerminalKeypressSignal(logger logging.Logger) (*KeypressSignal, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal")
	}
	return NewKeypressSignal(os.Stdin, logger), nil
}

// Requested reports whether q was entered.
func (ks *KeypressSignal) Requested() bool {
	return ks.requested.Load()
}
