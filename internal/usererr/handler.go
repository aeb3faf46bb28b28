package usererr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dbusererr/internal/payload"
	"dbusererr/internal/shared"
	"dbusererr/internal/translate"
)

// DefaultPrefix marks the start of a payload in a raised message.
const DefaultPrefix = "app-exception: "

// Config selects which errors a Handler rewrites.
type Config struct {
	// Prefix must start the unwrapped message. An empty prefix accepts every
	// message from an enabled source.
	Prefix string
	// Sources lists the enabled error sources. Empty means DefaultSources.
	Sources []Source
}

// DefaultConfig returns the prefix "app-exception: " and DefaultSources.
func DefaultConfig() Config {
	return Config{Prefix: DefaultPrefix, Sources: DefaultSources()}
}

// Handler rewrites database errors that carry a user-error payload into
// translated *Error values. It is immutable and safe for concurrent use.
type Handler struct {
	prefix     string
	sources    []Source
	translator translate.Translator
	log        *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New builds a Handler. A nil translator means translate.Passthrough.
func New(cfg Config, tr translate.Translator, opts ...HandlerOption) (*Handler, error) {
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	for _, s := range sources {
		if _, ok := sourceNames[s]; !ok {
			return nil, fmt.Errorf("%w: unknown error source %d", shared.ErrInvalidConfig, int(s))
		}
	}
	if tr == nil {
		tr = translate.Passthrough{}
	}

	h := &Handler{
		prefix:     cfg.Prefix,
		sources:    append([]Source(nil), sources...),
		translator: tr,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Prefix returns the configured prefix.
func (h *Handler) Prefix() string { return h.prefix }

// Sources returns a copy of the enabled sources.
func (h *Handler) Sources() []Source { return append([]Source(nil), h.sources...) }

// Parse classifies err and parses its payload without translating it.
// ok is false when err is not a user error.
func (h *Handler) Parse(ctx context.Context, err error) (msg payload.Message, c Candidate, ok bool) {
	c, cerr := Classify(err, h.sources)
	if cerr != nil {
		h.log.Log(ctx, skipLevel(cerr), "error skipped", slog.String("reason", cerr.Error()))
		return payload.Message{}, Candidate{}, false
	}

	raw, found := strings.CutPrefix(c.Text, h.prefix)
	if !found {
		h.log.DebugContext(ctx, "error skipped",
			slog.String("source", c.Source.String()),
			slog.String("reason", "prefix not found"),
		)
		return payload.Message{}, Candidate{}, false
	}
	return payload.Parse(raw), c, true
}

// skipLevel is Warn for a recognized source in an unexpected shape.
func skipLevel(err error) slog.Level {
	switch {
	case shared.IsUnrecognizedEnvelope(err):
		return slog.LevelWarn
	case shared.IsNotApplicable(err):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Handle returns err unchanged unless it carries a user-error payload, in
// which case it returns an *Error with the translated message. The locale
// is taken from ctx (see translate.WithLocale). Handle(ctx, nil) is nil and
// errors already handled are returned as is.
func (h *Handler) Handle(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, done := As(err); done {
		return err
	}

	msg, c, ok := h.Parse(ctx, err)
	if !ok {
		return err
	}

	text := h.translator.Translate(ctx, msg.Text, msg.Params)
	h.log.InfoContext(ctx, "user error",
		slog.String("source", c.Source.String()),
		slog.String("code", c.Code),
		slog.String("key", msg.Text),
	)

	return &Error{
		Message: text,
		Key:     msg.Text,
		Params:  msg.Params,
		Source:  c.Source,
		Code:    c.Code,
		cause:   err,
	}
}
