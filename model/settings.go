package model

import "github.com/tidwall/gjson"

// DefaultContextLength is the window applied when a session sets none.
const DefaultContextLength = 10

// UnlimitedContext is the contextLength value that disables windowing.
const UnlimitedContext = -1

// SessionSettings are the per-session knobs stored in session metadata.
type SessionSettings struct {
	Temperature   float64
	ContextLength int
	// NoContextLimit mirrors the legacy metadata flag.
	NoContextLimit bool
}

// ContextWindow is the resolved context policy for one send.
type ContextWindow struct {
	MaxMessages int
	NoLimit     bool
}

// DefaultSessionSettings returns temperature 0.7 and a window of ten.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{Temperature: DefaultTemperature, ContextLength: DefaultContextLength}
}

// ParseSessionSettings reads settings from session metadata JSON. Values
// may be numbers or numeric strings; unknown or malformed metadata yields
// the defaults.
func ParseSessionSettings(metadata string) SessionSettings {
	s := DefaultSessionSettings()
	if metadata == "" || !gjson.Valid(metadata) {
		return s
	}
	doc := gjson.Parse(metadata)
	if v := doc.Get("temperature"); v.Exists() && v.Type != gjson.Null {
		s.Temperature = v.Float()
	}
	if v := doc.Get("contextLength"); v.Exists() && v.Type != gjson.Null {
		s.ContextLength = int(v.Int())
	}
	s.NoContextLimit = doc.Get("noContextLimit").Bool()
	return s
}

// Window resolves the context policy for these settings.
func (s SessionSettings) Window() ContextWindow {
	w := ContextWindow{MaxMessages: DefaultContextLength}
	if s.ContextLength == UnlimitedContext {
		w.NoLimit = true
	} else {
		w.MaxMessages = s.ContextLength
	}
	if s.NoContextLimit {
		w.NoLimit = true
	}
	return w
}
