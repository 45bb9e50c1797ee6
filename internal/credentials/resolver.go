// Package credentials resolves secret-bearing configuration values.
//
// Configuration files ship with placeholders such as ${TELEGRAM_BOT_TOKEN};
// the real secret is injected through the process environment. A placeholder
// whose variable is missing or empty resolves to "unset", which disables the
// dependent feature rather than failing the run.
package credentials

import (
	"os"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// WarnFunc receives a message when a placeholder cannot be resolved.
type WarnFunc func(message string)

// Resolver resolves configured values against an environment lookup.
type Resolver struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	// Warn is optional.
	Warn WarnFunc
}

// NewResolver creates a Resolver backed by the process environment.
func NewResolver(warn WarnFunc) *Resolver {
	return &Resolver{LookupEnv: os.LookupEnv, Warn: warn}
}

// Placeholder returns the variable name of the first ${NAME} token in value.
func Placeholder(value string) (string, bool) {
	m := placeholderPattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Resolve returns the effective value of a configured setting.
// A nil value is unset. A value holding a ${NAME} placeholder resolves to the
// environment variable NAME, or unset when that variable is missing or empty.
// Any other value is returned verbatim.
func (r *Resolver) Resolve(configured *string) (string, bool) {
	if configured == nil {
		return "", false
	}

	name, ok := Placeholder(*configured)
	if !ok {
		return *configured, true
	}

	lookup := r.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	envValue, found := lookup(name)
	if !found || envValue == "" {
		if r.Warn != nil {
			r.Warn(name + " environment variable not set; dependent feature disabled")
		}
		return "", false
	}
	return envValue, true
}

// ResolveString is Resolve for a plain string where "" means not configured.
func (r *Resolver) ResolveString(configured string) (string, bool) {
	if configured == "" {
		return "", false
	}
	return r.Resolve(&configured)
}

// ResolveList resolves a comma-separated value and returns its trimmed,
// non-empty elements. An empty result is reported as unset.
func (r *Resolver) ResolveList(configured string) ([]string, bool) {
	value, ok := r.ResolveString(configured)
	if !ok {
		return nil, false
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
