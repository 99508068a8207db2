package ws

import (
	"errors"

	"github.com/dohr-michael/netwatch/internal/enhance"
	"github.com/dohr-michael/netwatch/internal/netmetrics"
	"github.com/dohr-michael/netwatch/internal/transcript"
)

// Transcript is the conversation surface exposed to clients.
type Transcript interface {
	Submit(text string) (*transcript.Handle, error)
	Snapshot() transcript.Snapshot
}

// Metrics exposes the current metrics state.
type Metrics interface {
	Current() netmetrics.Snapshot
}

// Services bundles what the gateway serves.
type Services struct {
	Transcript Transcript
	Metrics    Metrics
	Selector   *enhance.Selector
}

// Options is the enhancement catalog with the current selection.
type Options struct {
	Languages []string          `json:"languages"`
	Groups    []enhance.Group   `json:"groups"`
	Selection enhance.Selection `json:"selection"`
}

// OptionsOf returns the catalog and the selector's current state.
func OptionsOf(sel *enhance.Selector) Options {
	return Options{
		Languages: enhance.Languages,
		Groups:    enhance.Groups,
		Selection: sel.Current(),
	}
}

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, transcript.ErrEmptyInput) ||
		errors.Is(err, enhance.ErrUnknownGroup) ||
		errors.Is(err, enhance.ErrUnknownOption) ||
		errors.Is(err, enhance.ErrUnknownLanguage)
}
