// Package command is the named-command source for the decks. Commands are
// registered under a unique name and optional key bindings and run against
// a session.
package command

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownCommand is returned by Exec for names that were never
	// registered.
	ErrUnknownCommand = errors.New("command: unknown command")

	errEmptyName    = errors.New("command: empty name")
	errNilRun       = errors.New("command: nil run func")
	errDuplicate    = errors.New("command: duplicate name")
	errDuplicateKey = errors.New("command: key already bound")
)

// Command is one named action.
type Command struct {
	Name  string
	Group string
	Help  string
	// Keys are key names in the form reported by bubbletea, such as "x",
	// "X" or "ctrl+e".
	Keys []string
	Run  func() error
}

// Registry maps names and keys to commands. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Command
	byKey  map[string]*Command
	order  []*Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Command),
		byKey:  make(map[string]*Command),
	}
}

// Register adds c. Names and keys must be unique.
func (r *Registry) Register(c Command) error {
	if c.Name == "" {
		return errEmptyName
	}
	if c.Run == nil {
		return fmt.Errorf("%w: %s", errNilRun, c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[c.Name]; ok {
		return fmt.Errorf("%w: %s", errDuplicate, c.Name)
	}
	for _, k := range c.Keys {
		if prev, ok := r.byKey[k]; ok {
			return fmt.Errorf("%w: %q is %s", errDuplicateKey, k, prev.Name)
		}
	}
	cmd := c
	cmd.Keys = append([]string(nil), c.Keys...)
	r.byName[c.Name] = &cmd
	for _, k := range cmd.Keys {
		r.byKey[k] = &cmd
	}
	r.order = append(r.order, &cmd)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(c Command) {
	if err := r.Register(c); err != nil {
		panic(err.Error())
	}
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// ForKey returns the command bound to key.
func (r *Registry) ForKey(key string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[key]
	if !ok {
		return Command{}, false
	}
	return *c, true
}

// Exec runs the named command.
func (r *Registry) Exec(name string) error {
	c, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return c.Run()
}

// HandleKey runs the command bound to key. It reports whether one was
// bound.
func (r *Registry) HandleKey(key string) (bool, error) {
	c, ok := r.ForKey(key)
	if !ok {
		return false, nil
	}
	return true, c.Run()
}

// Commands returns every command in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.order))
	for i, c := range r.order {
		out[i] = *c
	}
	return out
}
