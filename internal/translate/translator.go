// Package translate turns message keys and %name% parameters into localized
// text.
package translate

import (
	"cmp"
	"context"
	"slices"
	"strings"
)

// Translator resolves key in the locale carried by ctx and substitutes params.
// Implementations return key itself, with params substituted, when they have
// no translation for it.
type Translator interface {
	Translate(ctx context.Context, key string, params map[string]string) string
}

// Func adapts an ordinary function to Translator.
type Func func(ctx context.Context, key string, params map[string]string) string

// Translate implements Translator.
func (f Func) Translate(ctx context.Context, key string, params map[string]string) string {
	return f(ctx, key, params)
}

// Passthrough treats every key as the final message and only substitutes
// placeholders.
type Passthrough struct{}

// Translate implements Translator.
func (Passthrough) Translate(_ context.Context, key string, params map[string]string) string {
	return Substitute(key, params)
}

// Substitute replaces every occurrence of each params key in s with its value.
// Longer keys are tried first at each position and replaced text is never
// scanned again. Empty keys are ignored.
func Substitute(s string, params map[string]string) string {
	if len(params) == 0 || s == "" {
		return s
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(keys) == 0 {
		return s
	}
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, params[k])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

type localeKey struct{}

// WithLocale returns a copy of ctx carrying locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFrom returns the locale stored by WithLocale.
func LocaleFrom(ctx context.Context) (string, bool) {
	l, ok := ctx.Value(localeKey{}).(string)
	return l, ok && l != ""
}
