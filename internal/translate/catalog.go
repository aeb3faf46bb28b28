package translate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/ru"
	ut "github.com/go-playground/universal-translator"
	"golang.org/x/text/language"

	"dbusererr/internal/shared"
)

// CountParam selects the plural form of an entry added with AddPlural.
const CountParam = "%count%"

var supported = map[string]func() locales.Translator{
	"en": en.New,
	"de": de.New,
	"fr": fr.New,
	"nl": nl.New,
	"ru": ru.New,
	"es": es.New,
}

var pluralNames = map[string]locales.PluralRule{
	"zero":  locales.PluralRuleZero,
	"one":   locales.PluralRuleOne,
	"two":   locales.PluralRuleTwo,
	"few":   locales.PluralRuleFew,
	"many":  locales.PluralRuleMany,
	"other": locales.PluralRuleOther,
}

// SupportedLocales lists the locales a Catalog can hold, sorted.
func SupportedLocales() []string {
	out := make([]string, 0, len(supported))
	for l := range supported {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Catalog is a Translator backed by per-locale message tables.
// Fill it with Add and AddPlural before sharing it between goroutines; after
// that it is read-only and safe for concurrent use.
type Catalog struct {
	uni      *ut.UniversalTranslator
	fallback string
	tags     []string
	matcher  language.Matcher
	plurals  map[string]map[string]map[locales.PluralRule]string
	log      *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used to report missing translations.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCatalog returns an empty catalog. Lookups that miss the requested locale
// fall back to fallback.
func NewCatalog(fallback string, opts ...Option) (*Catalog, error) {
	newFallback, ok := supported[fallback]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fallback locale %q", shared.ErrInvalidConfig, fallback)
	}

	c := &Catalog{
		fallback: fallback,
		plurals:  make(map[string]map[string]map[locales.PluralRule]string),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}

	// The fallback goes first so the matcher prefers it on ties.
	c.tags = append(c.tags, fallback)
	all := []locales.Translator{}
	for _, l := range SupportedLocales() {
		all = append(all, supported[l]())
		if l != fallback {
			c.tags = append(c.tags, l)
		}
	}
	c.uni = ut.New(newFallback(), all...)

	langTags := make([]language.Tag, 0, len(c.tags))
	for _, l := range c.tags {
		langTags = append(langTags, language.Make(l))
	}
	c.matcher = language.NewMatcher(langTags)
	return c, nil
}

// Fallback returns the fallback locale.
func (c *Catalog) Fallback() string { return c.fallback }

// Add registers text for key in locale. Text uses %name% placeholders;
// braces are reserved.
func (c *Catalog) Add(locale, key, text string) error {
	tr, err := c.translator(locale)
	if err != nil {
		return err
	}
	if strings.ContainsAny(text, "{}") {
		return fmt.Errorf("%w: %s/%s: braces are not allowed in messages", shared.ErrCatalog, locale, key)
	}
	if err := tr.Add(key, text, true); err != nil {
		return fmt.Errorf("%w: %s/%s: %w", shared.ErrCatalog, locale, key, err)
	}
	return nil
}

// AddPlural registers plural forms for key in locale. forms is keyed by CLDR
// category (zero, one, two, few, many, other) and must contain "other". The
// form is chosen from the CountParam parameter at translation time.
func (c *Catalog) AddPlural(locale, key string, forms map[string]string) error {
	if _, err := c.translator(locale); err != nil {
		return err
	}
	if _, ok := forms["other"]; !ok {
		return fmt.Errorf("%w: %s/%s: plural forms need \"other\"", shared.ErrCatalog, locale, key)
	}
	byRule := make(map[locales.PluralRule]string, len(forms))
	for name, text := range forms {
		rule, ok := pluralNames[name]
		if !ok {
			return fmt.Errorf("%w: %s/%s: unknown plural category %q", shared.ErrCatalog, locale, key, name)
		}
		byRule[rule] = text
	}
	if c.plurals[locale] == nil {
		c.plurals[locale] = make(map[string]map[locales.PluralRule]string)
	}
	c.plurals[locale][key] = byRule
	return nil
}

// Translate implements Translator. The locale comes from ctx (see WithLocale)
// and defaults to the fallback locale.
func (c *Catalog) Translate(ctx context.Context, key string, params map[string]string) string {
	locale := c.fallback
	if l, ok := LocaleFrom(ctx); ok {
		locale = c.Resolve(l)
	}

	text, ok := c.lookup(locale, key, params)
	if !ok && locale != c.fallback {
		text, ok = c.lookup(c.fallback, key, params)
	}
	if !ok {
		c.log.DebugContext(ctx, "translation missing",
			slog.String("key", key),
			slog.String("locale", locale),
		)
		text = key
	}
	return Substitute(text, params)
}

// Resolve maps a requested locale such as "de-AT" or "de_AT" to the closest
// supported one, or to the fallback.
func (c *Catalog) Resolve(locale string) string {
	if _, ok := supported[locale]; ok {
		return locale
	}
	return c.Match(strings.ReplaceAll(locale, "_", "-"))
}

// Match picks the supported locale that best fits an Accept-Language header
// value. Unparseable or unmatched input yields the fallback.
func (c *Catalog) Match(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.fallback
	}
	return c.tags[idx]
}

func (c *Catalog) lookup(locale, key string, params map[string]string) (string, bool) {
	tr, ok := c.uni.GetTranslator(locale)
	if !ok {
		return "", false
	}
	if forms, ok := c.plurals[locale][key]; ok {
		return pluralForm(tr, forms, params[CountParam]), true
	}
	text, err := tr.T(key)
	if err != nil {
		return "", false
	}
	return text, true
}

func (c *Catalog) translator(locale string) (ut.Translator, error) {
	if _, ok := supported[locale]; !ok {
		return nil, fmt.Errorf("%w: unsupported locale %q", shared.ErrCatalog, locale)
	}
	tr, _ := c.uni.GetTranslator(locale)
	return tr, nil
}

func pluralForm(tr locales.Translator, forms map[locales.PluralRule]string, count string) string {
	num, err := strconv.ParseFloat(strings.TrimSpace(count), 64)
	if err != nil {
		return forms[locales.PluralRuleOther]
	}
	var digits uint64
	if i := strings.IndexByte(count, '.'); i >= 0 {
		digits = uint64(len(strings.TrimSpace(count[i+1:])))
	}
	if text, ok := forms[tr.CardinalPluralRule(num, digits)]; ok {
		return text
	}
	return forms[locales.PluralRuleOther]
}
