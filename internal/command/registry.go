// Package command implements the one CLI/developer-console surface the
// simulation core exposes: a registry mapping a command name to a
// handler function, with its argument vector reconstructed from a
// whitespace-split input line.
package command

import (
	"strings"

	"github.com/pkg/errors"
)

// Handler is one console command's implementation: args is the
// whitespace-split (quote-aware) remainder of the command line after
// the command name.
type Handler func(args []string) (string, error)

// Registry maps command names to handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds name to handler, overwriting any prior binding.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Names returns the currently registered command names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Dispatch splits line into a command name and argument vector and
// invokes the matching handler. An unknown command name returns an
// error string rather than panicking.
func (r *Registry) Dispatch(line string) (string, error) {
	tokens := splitLine(line)
	if len(tokens) == 0 {
		return "", errors.New("command: empty input")
	}
	name, args := tokens[0], tokens[1:]
	h, ok := r.handlers[name]
	if !ok {
		return "", errors.Errorf("command: unknown command %q", name)
	}
	return h(args)
}

// splitLine tokenizes a command line on whitespace, honoring single-
// and double-quoted substrings so a quoted argument can itself contain
// spaces.
func splitLine(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := byte(0)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}
