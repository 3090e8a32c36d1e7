package transformer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"tvetl/internal/nullable"
)

// ParseLabelList decodes the textual form of a genre sequence. Two
// encodings are accepted: a JSON array (["Drama","Comedy"]) and the list
// literal a row-oriented export writes (['Drama', "Children's"]). null and
// None elements decode to absent labels. Blank text is an empty sequence.
func ParseLabelList(s string) ([]nullable.Value[string], error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") {
		return nil, fmt.Errorf("not a list: %.40q", s)
	}

	var js []*string
	if err := json.Unmarshal([]byte(s), &js); err == nil {
		out := make([]nullable.Value[string], len(js))
		for i, p := range js {
			if p != nil {
				out[i] = nullable.Of(*p)
			}
		}
		return out, nil
	}

	p := &literalParser{src: s}
	return p.list()
}

type literalParser struct {
	src string
	pos int
}

var errUnterminated = errors.New("unterminated list")

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) list() ([]nullable.Value[string], error) {
	p.pos++ // '['
	out := []nullable.Value[string]{}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, errUnterminated
		}
		if p.src[p.pos] == ']' {
			p.pos++
			break
		}

		v, err := p.element()
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, errUnterminated
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
		}
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}
	return out, nil
}

func (p *literalParser) element() (nullable.Value[string], error) {
	rest := p.src[p.pos:]
	switch {
	case strings.HasPrefix(rest, "None"):
		p.pos += len("None")
		return nullable.Null[string](), nil
	case strings.HasPrefix(rest, "null"):
		p.pos += len("null")
		return nullable.Null[string](), nil
	case rest[0] == '\'' || rest[0] == '"':
		s, err := p.quoted(rest[0])
		if err != nil {
			return nullable.Null[string](), err
		}
		return nullable.Of(s), nil
	}
	return nullable.Null[string](), fmt.Errorf("unexpected %q at offset %d", rest[0], p.pos)
}

// quoted reads a single- or double-quoted string with backslash escapes.
func (p *literalParser) quoted(q byte) (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == q:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", fmt.Errorf("dangling escape at offset %d", p.pos)
			}
			n, adv, err := unescape(p.src[p.pos:])
			if err != nil {
				return "", fmt.Errorf("offset %d: %w", p.pos, err)
			}
			b.WriteString(n)
			p.pos += adv
		default:
			_, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteString(p.src[p.pos : p.pos+size])
			p.pos += size
		}
	}
	return "", fmt.Errorf("unterminated string at offset %d", start)
}

// unescape decodes the escape sequence at the start of s and reports how
// many bytes it consumed.
func unescape(s string) (string, int, error) {
	switch s[1] {
	case '\\', '\'', '"':
		return s[1:2], 2, nil
	case 'n':
		return "\n", 2, nil
	case 't':
		return "\t", 2, nil
	case 'r':
		return "\r", 2, nil
	case 'x', 'u', 'U':
		width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[1]]
		if len(s) < 2+width {
			return "", 0, fmt.Errorf("short \\%c escape", s[1])
		}
		r, err := strconv.ParseUint(s[2:2+width], 16, 32)
		if err != nil || !utf8.ValidRune(rune(r)) {
			return "", 0, fmt.Errorf("bad \\%c escape %q", s[1], s[:2+width])
		}
		return string(rune(r)), 2 + width, nil
	}
	return s[:2], 2, nil
}
