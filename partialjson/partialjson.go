// Package partialjson parses prefixes of JSON documents into best-effort
// values. It exists for streaming tool inputs: the server sends the input
// object as a sequence of raw fragments, and after every fragment the
// concatenated buffer is re-parsed so callers can observe the input as it
// grows.
//
// The parser tolerates exactly the damage truncation causes - unterminated
// strings, arrays and objects, dangling keys, and cut-off literals. It is not
// a JSON repair library: input that is not a prefix of any valid JSON value
// is an error.
package partialjson

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Mode selects how an unterminated string value at the end of the buffer is
// handled.
type Mode int

const (
	// ModeDefault drops unterminated string values; a key whose value is an
	// unterminated string is omitted from the result.
	ModeDefault Mode = iota

	// ModeTrailingStrings keeps unterminated string values with the partial
	// contents seen so far. Requested via the fine-grained tool streaming
	// beta header.
	ModeTrailingStrings
)

// Decode parses buf, a prefix of a valid JSON value, into the greatest value
// that can be recovered from it. Unterminated containers yield their partial
// contents; see Mode for unterminated strings. It is deterministic and O(n)
// in the length of buf.
func Decode(buf []byte, mode Mode) (any, error) {
	// Complete documents take the ordinary path.
	if json.Valid(buf) {
		var v any
		if err := json.Unmarshal(buf, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	p := &parser{buf: buf, mode: mode}
	v, _, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.buf) {
		return nil, fmt.Errorf("partialjson: trailing data at offset %d", p.pos)
	}
	return v, nil
}

// valState classifies how a parsed value ended.
type valState int

const (
	stComplete valState = iota // properly terminated
	stPartial                  // truncated but representable
	stDrop                     // truncated and not representable in this mode
)

type parser struct {
	buf  []byte
	pos  int
	mode Mode
}

func (p *parser) skipSpace() {
	for p.pos < len(p.buf) {
		switch p.buf[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value() (any, valState, error) {
	p.skipSpace()
	if p.pos >= len(p.buf) {
		return nil, stDrop, nil
	}
	switch c := p.buf[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		s, complete := p.str()
		if complete {
			return s, stComplete, nil
		}
		if p.mode == ModeTrailingStrings {
			return s, stPartial, nil
		}
		return "", stDrop, nil
	case c == 't' || c == 'f' || c == 'n':
		return p.literal()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return nil, 0, fmt.Errorf("partialjson: unexpected byte %q at offset %d", c, p.pos)
	}
}

func (p *parser) object() (any, valState, error) {
	p.pos++ // '{'
	m := map[string]any{}
	p.skipSpace()
	if p.pos >= len(p.buf) {
		return m, stPartial, nil
	}
	if p.buf[p.pos] == '}' {
		p.pos++
		return m, stComplete, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.buf) {
			return m, stPartial, nil
		}
		if p.buf[p.pos] != '"' {
			return nil, 0, fmt.Errorf("partialjson: expected object key at offset %d", p.pos)
		}
		key, complete := p.str()
		if !complete {
			// Truncated key: omit it.
			return m, stPartial, nil
		}
		p.skipSpace()
		if p.pos >= len(p.buf) {
			return m, stPartial, nil
		}
		if p.buf[p.pos] != ':' {
			return nil, 0, fmt.Errorf("partialjson: expected ':' at offset %d", p.pos)
		}
		p.pos++
		v, st, err := p.value()
		if err != nil {
			return nil, 0, err
		}
		if st == stDrop {
			// Key has no representable value yet.
			return m, stPartial, nil
		}
		m[key] = v
		if st == stPartial {
			return m, stPartial, nil
		}
		p.skipSpace()
		if p.pos >= len(p.buf) {
			return m, stPartial, nil
		}
		switch p.buf[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return m, stComplete, nil
		default:
			return nil, 0, fmt.Errorf("partialjson: expected ',' or '}' at offset %d", p.pos)
		}
	}
}

func (p *parser) array() (any, valState, error) {
	p.pos++ // '['
	arr := []any{}
	p.skipSpace()
	if p.pos >= len(p.buf) {
		return arr, stPartial, nil
	}
	if p.buf[p.pos] == ']' {
		p.pos++
		return arr, stComplete, nil
	}
	for {
		v, st, err := p.value()
		if err != nil {
			return nil, 0, err
		}
		if st == stDrop {
			return arr, stPartial, nil
		}
		arr = append(arr, v)
		if st == stPartial {
			return arr, stPartial, nil
		}
		p.skipSpace()
		if p.pos >= len(p.buf) {
			return arr, stPartial, nil
		}
		switch p.buf[p.pos] {
		case ',':
			p.pos++
			p.skipSpace()
		case ']':
			p.pos++
			return arr, stComplete, nil
		default:
			return nil, 0, fmt.Errorf("partialjson: expected ',' or ']' at offset %d", p.pos)
		}
	}
}

// str parses a string whose opening quote is at p.pos. It reports whether
// the closing quote was reached. Truncated strings are cut back to the last
// whole escape sequence so the remainder always decodes.
func (p *parser) str() (string, bool) {
	start := p.pos
	p.pos++ // '"'
	lastSafe := p.pos
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		if c == '"' {
			var s string
			// The segment is a complete JSON string; stdlib handles escapes.
			if err := json.Unmarshal(p.buf[start:p.pos+1], &s); err != nil {
				// Unreachable for well-formed escapes; fall back to raw.
				s = string(p.buf[start+1 : p.pos])
			}
			p.pos++
			return s, true
		}
		if c == '\\' {
			n := escapeLen(p.buf[p.pos:])
			if n == 0 {
				// Escape cut off mid-sequence.
				break
			}
			p.pos += n
		} else {
			p.pos++
		}
		lastSafe = p.pos
	}
	seg := p.buf[start+1 : lastSafe]
	p.pos = len(p.buf)
	var s string
	quoted := append(append([]byte{'"'}, seg...), '"')
	if err := json.Unmarshal(quoted, &s); err != nil {
		s = string(seg)
	}
	return s, false
}

// escapeLen returns the byte length of the escape sequence at the start of b,
// or 0 if b ends before the sequence does.
func escapeLen(b []byte) int {
	if len(b) < 2 {
		return 0
	}
	if b[1] == 'u' {
		if len(b) < 6 {
			return 0
		}
		return 6
	}
	return 2
}

func (p *parser) literal() (any, valState, error) {
	rest := string(p.buf[p.pos:])
	for lit, v := range map[string]any{"true": true, "false": false, "null": nil} {
		if strings.HasPrefix(rest, lit) {
			p.pos += len(lit)
			return v, stComplete, nil
		}
		if strings.HasPrefix(lit, rest) {
			// Cut-off literal at the end of the buffer.
			p.pos = len(p.buf)
			return nil, stDrop, nil
		}
	}
	return nil, 0, fmt.Errorf("partialjson: invalid literal at offset %d", p.pos)
}

func (p *parser) number() (any, valState, error) {
	start := p.pos
	for p.pos < len(p.buf) {
		switch c := p.buf[p.pos]; {
		case c >= '0' && c <= '9', c == '-', c == '+', c == '.', c == 'e', c == 'E':
			p.pos++
		default:
			goto done
		}
	}
done:
	tok := p.buf[start:p.pos]
	atEnd := p.pos >= len(p.buf)
	// Trim back to the longest parsable prefix; only relevant when the token
	// was cut off (e.g. "12." or "3e").
	for len(tok) > 0 {
		if f, err := strconv.ParseFloat(string(tok), 64); err == nil {
			return f, stComplete, nil
		}
		if !atEnd {
			return nil, 0, fmt.Errorf("partialjson: invalid number at offset %d", start)
		}
		tok = tok[:len(tok)-1]
	}
	if atEnd {
		// Bare "-" so far.
		return nil, stDrop, nil
	}
	return nil, 0, fmt.Errorf("partialjson: invalid number at offset %d", start)
}
