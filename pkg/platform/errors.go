// platform-mcp - MCP servers for developer platforms
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// HTTPError is the transport-level failure shape: either the request never
// completed (Err set) or the platform answered with a non-2xx status.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Status != "" {
		return "request failed with status " + e.Status
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Error is the single local error kind every recoverable platform failure
// is normalised into. It is reported to the client as an error result.
type Error struct {
	Platform   string
	StatusCode int
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	return e.Platform + " API error: " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

// Translator maps the two known failure shapes onto *Error.
type Translator struct {
	Platform string
	// MessagePaths are gjson paths tried in order against an error body.
	MessagePaths []string
}

// Translate passes *Error through unchanged, converts *HTTPError, and
// returns every other error as is so the caller treats it as fatal.
func (t Translator) Translate(err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return &Error{
			Platform:   t.Platform,
			StatusCode: he.StatusCode,
			Detail:     t.detail(he),
			Err:        he,
		}
	}
	return err
}

func (t Translator) detail(he *HTTPError) string {
	paths := t.MessagePaths
	if len(paths) == 0 {
		paths = []string{"message"}
	}
	if len(he.Body) > 0 && gjson.ValidBytes(he.Body) {
		for _, p := range paths {
			if r := gjson.GetBytes(he.Body, p); r.Exists() {
				if msg := strings.TrimSpace(r.String()); msg != "" {
					return msg
				}
			}
		}
	}
	return he.Error()
}

// Errorf builds a local platform error, e.g. for a precondition a handler
// checks between two sequential calls.
func (t Translator) Errorf(format string, args ...any) *Error {
	return &Error{Platform: t.Platform, Detail: fmt.Sprintf(format, args...)}
}
