// Package ginmw rewrites database user errors collected on a gin context into
// translated messages.
package ginmw

import (
	"github.com/gin-gonic/gin"

	"dbusererr/internal/translate"
	"dbusererr/internal/usererr"
)

// Matcher picks a locale for an Accept-Language header value.
// *translate.Catalog implements it.
type Matcher interface {
	Match(acceptLanguage string) string
}

var _ Matcher = (*translate.Catalog)(nil)

// Middleware maps the errors handlers attach with c.Error through a
// usererr.Handler.
type Middleware struct {
	handler *usererr.Handler
	matcher Matcher
}

// Option configures Middleware.
type Option func(*Middleware)

// WithMatcher sets the locale of each request from its Accept-Language header.
func WithMatcher(m Matcher) Option {
	return func(mw *Middleware) { mw.matcher = m }
}

// New creates the middleware.
func New(h *usererr.Handler, opts ...Option) *Middleware {
	mw := &Middleware{handler: h}
	for _, o := range opts {
		o(mw)
	}
	return mw
}

// Handler returns the gin.HandlerFunc. It runs the chain first and then
// replaces every c.Errors entry that carries a user-error payload. It never
// writes a response.
func (mw *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if mw.matcher != nil {
			if accept := c.GetHeader("Accept-Language"); accept != "" {
				ctx := translate.WithLocale(c.Request.Context(), mw.matcher.Match(accept))
				c.Request = c.Request.WithContext(ctx)
			}
		}

		c.Next()

		ctx := c.Request.Context()
		for _, e := range c.Errors {
			e.Err = mw.handler.Handle(ctx, e.Err)
		}
	}
}

// UserError returns the last user error recorded on c, if any.
func UserError(c *gin.Context) (*usererr.Error, bool) {
	for i := len(c.Errors) - 1; i >= 0; i-- {
		if ue, ok := usererr.As(c.Errors[i].Err); ok {
			return ue, true
		}
	}
	return nil, false
}
