package config

import "strings"

// EngineType names a supported browser. The set is closed.
type EngineType string

const (
	EngineChromium EngineType = "chromium"
	EngineFirefox  EngineType = "firefox"
	EngineWebKit   EngineType = "webkit"
	EngineMSEdge   EngineType = "msedge"
	EngineChrome   EngineType = "chrome"

	DefaultEngine = EngineChromium
)

// Engines lists every supported engine in CLI order.
var Engines = []EngineType{EngineChromium, EngineFirefox, EngineWebKit, EngineMSEdge, EngineChrome}

// ResolveEngine maps a configured value onto a supported engine. The second
// return is false when raw was not recognized and DefaultEngine was chosen.
func ResolveEngine(raw string) (EngineType, bool) {
	candidate := EngineType(strings.ToLower(strings.TrimSpace(raw)))
	for _, e := range Engines {
		if e == candidate {
			return e, true
		}
	}
	return DefaultEngine, false
}

// Product is the browser family that drives this engine: chromium, firefox or webkit.
func (e EngineType) Product() EngineType {
	switch e {
	case EngineFirefox, EngineWebKit:
		return e
	default:
		return EngineChromium
	}
}

// Channel is the branded Chromium build for msedge/chrome, empty otherwise.
func (e EngineType) Channel() string {
	switch e {
	case EngineMSEdge, EngineChrome:
		return string(e)
	default:
		return ""
	}
}

// IsChromiumFamily reports whether the engine speaks CDP.
func (e EngineType) IsChromiumFamily() bool {
	return e.Product() == EngineChromium
}

// EngineNames returns the engine names as plain strings (for flag help and validation).
func EngineNames() []string {
	out := make([]string, len(Engines))
	for i, e := range Engines {
		out[i] = string(e)
	}
	return out
}
