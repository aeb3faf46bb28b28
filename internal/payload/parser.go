package payload

import "strings"

const whitespace = " \t\n\v\f\r"

// Message is the parsed form of a payload.
type Message struct {
	// Text is a literal message or a translation key.
	Text string
	// Params maps %name% placeholders to their values. Never nil.
	Params map[string]string
}

// Parse splits raw into a message and its parameters.
// Malformed input yields raw as the message and no parameters.
func Parse(raw string) Message {
	p := newParser(raw)
	m, ok := p.parse()
	if !ok {
		return Message{Text: raw, Params: map[string]string{}}
	}
	return m
}

// Quote wraps s in double quotes, doubling the quotes it contains.
// Parse(Quote(s)).Text == s for any non-empty s.
func Quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// parser holds lookup tables that make every decision O(1), so a payload is
// parsed in linear time.
type parser struct {
	s string
	// closeAt[i] is the index of the quote that closes a quoted segment whose
	// body starts at i, or -1.
	closeAt []int
	// nextPipe[i] is the index of the first '|' at or after i, or len(s).
	nextPipe []int
	// tailOK[i] reports whether the parameter list starting at pipe i parses
	// to the end of input. Only meaningful for pipe positions.
	tailOK []bool
}

func newParser(s string) *parser {
	n := len(s)
	p := &parser{
		s:        s,
		closeAt:  make([]int, n+1),
		nextPipe: make([]int, n+1),
		tailOK:   make([]bool, n+1),
	}

	// A run of quotes of even length is a sequence of escaped quotes. The
	// first odd run closes the segment on its last quote.
	run := make([]int, n+1)
	p.closeAt[n] = -1
	p.nextPipe[n] = n
	for i := n - 1; i >= 0; i-- {
		if s[i] == '"' {
			run[i] = run[i+1] + 1
		}
		if s[i] == '|' {
			p.nextPipe[i] = i
		} else {
			p.nextPipe[i] = p.nextPipe[i+1]
		}
	}
	for i := n - 1; i >= 0; i-- {
		switch {
		case s[i] != '"':
			p.closeAt[i] = p.closeAt[i+1]
		case run[i]%2 == 1:
			p.closeAt[i] = i + run[i] - 1
		default:
			p.closeAt[i] = p.closeAt[i+run[i]]
		}
	}

	for i := n - 1; i >= 0; i-- {
		if s[i] == '|' {
			_, _, _, p.tailOK[i] = p.param(i)
		}
	}
	return p
}

// quotedEnd returns the index of the closing quote of the segment opening at
// i, or -1 when there is none or the body is empty.
func (p *parser) quotedEnd(i int) int {
	if i >= len(p.s) || p.s[i] != '"' {
		return -1
	}
	e := p.closeAt[i+1]
	if e == i+1 {
		return -1
	}
	return e
}

// restOK reports whether input from i on is optional whitespace followed by
// either end of input or a valid parameter list.
func (p *parser) restOK(i int) bool {
	i = p.skipSpace(i)
	if i == len(p.s) {
		return true
	}
	return p.s[i] == '|' && p.tailOK[i]
}

// continuesAt reports whether a token ending right before pipe position q
// (or end of input) is followed by something valid.
func (p *parser) continuesAt(q int) bool {
	return q == len(p.s) || p.tailOK[q]
}

func (p *parser) skipSpace(i int) int {
	for i < len(p.s) && strings.IndexByte(whitespace, p.s[i]) >= 0 {
		i++
	}
	return i
}

// value chooses between a quoted and an unquoted segment starting at i. It
// returns the segment and the position right after it. A quoted segment wins
// when the rest of the input still parses after it.
func (p *parser) value(i int) (seg string, next int, ok bool) {
	if e := p.quotedEnd(i); e >= 0 && p.restOK(e+1) {
		return p.s[i : e+1], e + 1, true
	}
	q := p.nextPipe[i]
	if q == i {
		return "", i, false
	}
	return p.s[i:q], q, p.continuesAt(q)
}

// param reads "|name:value" at pipe position q.
func (p *parser) param(q int) (name, val string, next int, ok bool) {
	if q >= len(p.s) || p.s[q] != '|' {
		return "", "", q, false
	}
	i := p.skipSpace(q + 1)
	start := i
	for i < len(p.s) && isIdent(p.s[i], i > start) {
		i++
	}
	if i == start || i >= len(p.s) || p.s[i] != ':' {
		return "", "", q, false
	}
	name = p.s[start:i]
	val, next, ok = p.value(i + 1)
	return name, val, next, ok
}

func (p *parser) parse() (Message, bool) {
	s := p.s
	i := p.skipSpace(0)

	var text string
	switch {
	case i == len(s) || s[i] == '|':
		// Leading whitespace alone is an empty message; nothing at all is not.
		if i == 0 {
			return Message{}, false
		}
		if !p.continuesAt(i) {
			return Message{}, false
		}
	default:
		seg, next, ok := p.value(i)
		if !ok {
			return Message{}, false
		}
		text = seg
		i = next
	}

	params := map[string]string{}
	for {
		i = p.skipSpace(i)
		if i == len(s) {
			break
		}
		name, val, next, ok := p.param(i)
		if !ok {
			return Message{}, false
		}
		params["%"+name+"%"] = dequote(strings.TrimRight(val, whitespace))
		i = next
	}

	return Message{
		Text:   dequote(strings.Trim(text, whitespace)),
		Params: params,
	}, true
}

func isIdent(c byte, notFirst bool) bool {
	switch {
	case c == '_', 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		return true
	case notFirst && '0' <= c && c <= '9':
		return true
	}
	return false
}

// dequote strips the surrounding quotes of a segment that starts with one and
// collapses escaped quotes.
func dequote(v string) string {
	if !strings.HasPrefix(v, `"`) {
		return v
	}
	v = strings.TrimSuffix(v[1:], `"`)
	return strings.ReplaceAll(v, `""`, `"`)
}
