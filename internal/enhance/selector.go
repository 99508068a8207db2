package enhance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dohr-michael/netwatch/internal/events"
)

var (
	ErrUnknownGroup    = errors.New("unknown enhancement group")
	ErrUnknownOption   = errors.New("unknown enhancement option")
	ErrUnknownLanguage = errors.New("unsupported language")
)

// Selection is the current choice of language and enhancement.
type Selection struct {
	Language    string `json:"language"`
	Group       string `json:"group,omitempty"`
	GroupTitle  string `json:"group_title,omitempty"`
	Enhancement string `json:"enhancement,omitempty"`
	Explicit    bool   `json:"explicit"`
}

// Selector holds the process-wide selection. Safe for concurrent use.
type Selector struct {
	bus *events.Bus

	mu  sync.RWMutex
	sel Selection
}

// NewSelector returns a selector with nothing chosen. bus may be nil.
func NewSelector(bus *events.Bus) *Selector {
	return &Selector{bus: bus, sel: Selection{Language: DefaultLanguage}}
}

// Current returns the selection.
func (s *Selector) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// SelectLanguage sets the response language.
func (s *Selector) SelectLanguage(name string) error {
	lang, ok := FindLanguage(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}

	s.mu.Lock()
	s.sel.Language = lang
	s.sel.Explicit = true
	sel := s.sel
	s.mu.Unlock()

	s.publish(sel)
	return nil
}

// SelectEnhancement sets the enhancement to value within group.
func (s *Selector) SelectEnhancement(group, value string) error {
	g, ok := FindGroup(group)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	opt, ok := g.Option(value)
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrUnknownOption, value, g.Title)
	}

	s.mu.Lock()
	s.sel.Group = g.ID
	s.sel.GroupTitle = g.Title
	s.sel.Enhancement = opt
	s.sel.Explicit = true
	sel := s.sel
	s.mu.Unlock()

	s.publish(sel)
	return nil
}

// Clear resets to the initial, unselected state.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.sel = Selection{Language: DefaultLanguage}
	sel := s.sel
	s.mu.Unlock()

	s.publish(sel)
}

// Decorate prefixes prompt with the current selection. Without an explicit
// selection the prompt is returned unchanged.
func (s *Selector) Decorate(prompt string) (string, error) {
	sel := s.Current()
	if !sel.Explicit {
		return prompt, nil
	}

	if sel.Enhancement != "" {
		prompt = fmt.Sprintf("[%s: %s] %s", sel.GroupTitle, sel.Enhancement, prompt)
	}
	return fmt.Sprintf("[Language: %s] %s", sel.Language, prompt), nil
}

func (s *Selector) publish(sel Selection) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewTypedEvent(events.SourceGateway, events.SelectionChangedPayload{
		Language:    sel.Language,
		Enhancement: sel.GroupTitle,
		Value:       sel.Enhancement,
	}))
}
