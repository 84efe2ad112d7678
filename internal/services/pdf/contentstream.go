package pdf

import (
	"bytes"
	"strconv"
)

// Glyph metrics are not read from font programs. Text boxes use an average
// advance of half an em and an ascent of 0.8 em, which is close for the
// standard Latin fonts.
const (
	avgGlyphAdvance = 0.5
	ascentRatio     = 0.8
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokName
	tokString
	tokArray
	tokDict
	tokOperator
)

type token struct {
	kind  tokenKind
	num   float64
	text  string
	value []byte
	items []token
	start int
	end   int
}

// matrix is a PDF transformation matrix [a b c d e f]
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func translate(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

// multiply returns m x n
func (m matrix) multiply(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// shownString is one string operand of a text-showing operator.
// X/Y is the baseline origin in user space; Advance is the user-space width of one byte.
type shownString struct {
	Start   int
	End     int
	Value   []byte
	X       float64
	Y       float64
	Advance float64
	Size    float64
}

// textShow is the result of a single Tj, TJ, ' or " operator
type textShow struct {
	Parts []shownString
}

func (s textShow) text() string {
	var b []rune
	for _, p := range s.Parts {
		for _, c := range p.Value {
			b = append(b, rune(c))
		}
	}
	return string(b)
}

// bounds returns the user-space box of the shown text: left, baseline, width, size
func (s textShow) bounds() (x, y, width, size float64, ok bool) {
	first := true
	var right float64
	for _, p := range s.Parts {
		if len(p.Value) == 0 {
			continue
		}
		end := p.X + p.Advance*float64(len(p.Value))
		if first {
			x, y, size, right = p.X, p.Y, p.Size, end
			first = false
			continue
		}
		if p.X < x {
			x = p.X
		}
		if end > right {
			right = end
		}
		if p.Size > size {
			size = p.Size
		}
	}
	if first {
		return 0, 0, 0, 0, false
	}
	return x, y, right - x, size, true
}

type graphicsState struct {
	ctm matrix
}

type textState struct {
	tm       matrix
	tlm      matrix
	fontSize float64
	leading  float64
	charSp   float64
	wordSp   float64
	hScale   float64
	rise     float64
}

// parseTextShows interprets a decoded page content stream and returns every text-showing operation
func parseTextShows(content []byte) []textShow {
	lex := &lexer{data: content}
	var shows []textShow
	var operands []token

	gs := graphicsState{ctm: identity}
	var stack []graphicsState
	ts := textState{tm: identity, tlm: identity, hScale: 1}

	for {
		tok, ok := lex.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		nums := numbers(operands)
		switch tok.text {
		case "q":
			stack = append(stack, gs)
		case "Q":
			if len(stack) > 0 {
				gs = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
		case "cm":
			if len(nums) == 6 {
				gs.ctm = matrix{nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]}.multiply(gs.ctm)
			}
		case "BT":
			ts.tm, ts.tlm = identity, identity
		case "Tf":
			if len(operands) == 2 && operands[1].kind == tokNumber {
				ts.fontSize = operands[1].num
			}
		case "TL":
			if len(nums) == 1 {
				ts.leading = nums[0]
			}
		case "Tc":
			if len(nums) == 1 {
				ts.charSp = nums[0]
			}
		case "Tw":
			if len(nums) == 1 {
				ts.wordSp = nums[0]
			}
		case "Tz":
			if len(nums) == 1 {
				ts.hScale = nums[0] / 100
			}
		case "Ts":
			if len(nums) == 1 {
				ts.rise = nums[0]
			}
		case "Td":
			if len(nums) == 2 {
				ts.nextLine(nums[0], nums[1])
			}
		case "TD":
			if len(nums) == 2 {
				ts.leading = -nums[1]
				ts.nextLine(nums[0], nums[1])
			}
		case "Tm":
			if len(nums) == 6 {
				ts.tlm = matrix{nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]}
				ts.tm = ts.tlm
			}
		case "T*":
			ts.nextLine(0, -ts.leading)
		case "Tj":
			if len(operands) == 1 && operands[0].kind == tokString {
				shows = append(shows, textShow{Parts: []shownString{ts.show(operands[0], gs.ctm)}})
			}
		case "'":
			ts.nextLine(0, -ts.leading)
			if len(operands) == 1 && operands[0].kind == tokString {
				shows = append(shows, textShow{Parts: []shownString{ts.show(operands[0], gs.ctm)}})
			}
		case "\"":
			if len(operands) == 3 && operands[2].kind == tokString {
				ts.wordSp, ts.charSp = operands[0].num, operands[1].num
				ts.nextLine(0, -ts.leading)
				shows = append(shows, textShow{Parts: []shownString{ts.show(operands[2], gs.ctm)}})
			}
		case "TJ":
			if len(operands) == 1 && operands[0].kind == tokArray {
				var show textShow
				for _, item := range operands[0].items {
					switch item.kind {
					case tokString:
						show.Parts = append(show.Parts, ts.show(item, gs.ctm))
					case tokNumber:
						tx := -item.num / 1000 * ts.fontSize * ts.hScale
						ts.tm = translate(tx, 0).multiply(ts.tm)
					}
				}
				shows = append(shows, show)
			}
		}
		operands = operands[:0]
	}

	return shows
}

func (ts *textState) nextLine(tx, ty float64) {
	ts.tlm = translate(tx, ty).multiply(ts.tlm)
	ts.tm = ts.tlm
}

// show positions a string at the current text matrix and advances it
func (ts *textState) show(tok token, ctm matrix) shownString {
	trm := matrix{ts.fontSize * ts.hScale, 0, 0, ts.fontSize, 0, ts.rise}.multiply(ts.tm).multiply(ctm)
	userScaleX := ts.tm.multiply(ctm)[0]
	userScaleY := ts.tm.multiply(ctm)[3]

	perGlyph := (avgGlyphAdvance*ts.fontSize + ts.charSp) * ts.hScale
	s := shownString{
		Start:   tok.start,
		End:     tok.end,
		Value:   tok.value,
		X:       trm[4],
		Y:       trm[5],
		Advance: perGlyph * userScaleX,
		Size:    ts.fontSize * userScaleY,
	}

	advance := perGlyph * float64(len(tok.value))
	if ts.wordSp != 0 {
		advance += ts.wordSp * ts.hScale * float64(bytes.Count(tok.value, []byte{' '}))
	}
	ts.tm = translate(advance, 0).multiply(ts.tm)
	return s
}

func numbers(operands []token) []float64 {
	out := make([]float64, 0, len(operands))
	for _, op := range operands {
		if op.kind == tokNumber {
			out = append(out, op.num)
		}
	}
	return out
}

type lexer struct {
	data []byte
	pos  int
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isWhitespace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

// next returns the next complete token, collapsing arrays and dictionaries
func (l *lexer) next() (token, bool) {
	l.skipSpaceAndComments()
	if l.pos >= len(l.data) {
		return token{}, false
	}

	start := l.pos
	c := l.data[l.pos]
	switch {
	case c == '(':
		value := l.literalString()
		return token{kind: tokString, value: value, start: start, end: l.pos}, true
	case c == '<' && l.peek(1) == '<':
		l.pos += 2
		items := l.collect(">>")
		return token{kind: tokDict, items: items, start: start, end: l.pos}, true
	case c == '<':
		value := l.hexString()
		return token{kind: tokString, value: value, start: start, end: l.pos}, true
	case c == '[':
		l.pos++
		items := l.collect("]")
		return token{kind: tokArray, items: items, start: start, end: l.pos}, true
	case c == '/':
		l.pos++
		word := l.word()
		return token{kind: tokName, text: word, start: start, end: l.pos}, true
	case c == ']' || c == '>' || c == ')' || c == '{' || c == '}':
		l.pos++
		return l.next()
	}

	word := l.word()
	if word == "" {
		l.pos++
		return l.next()
	}
	if n, err := strconv.ParseFloat(word, 64); err == nil {
		return token{kind: tokNumber, num: n, start: start, end: l.pos}, true
	}
	if word == "ID" {
		l.skipInlineImage()
	}
	return token{kind: tokOperator, text: word, start: start, end: l.pos}, true
}

func (l *lexer) peek(offset int) byte {
	if l.pos+offset < len(l.data) {
		return l.data[l.pos+offset]
	}
	return 0
}

// collect reads tokens until the closing delimiter
func (l *lexer) collect(closing string) []token {
	var items []token
	for {
		l.skipSpaceAndComments()
		if l.pos >= len(l.data) {
			return items
		}
		if bytes.HasPrefix(l.data[l.pos:], []byte(closing)) {
			l.pos += len(closing)
			return items
		}
		tok, ok := l.next()
		if !ok {
			return items
		}
		items = append(items, tok)
	}
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isWhitespace(l.data[l.pos]) && !isDelimiter(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) literalString() []byte {
	l.pos++ // (
	depth := 1
	var out []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.data) {
				return out
			}
			e := l.data[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '7'; i++ {
						v = v*8 + int(l.data[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *lexer) hexString() []byte {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, _ := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage moves past binary inline image data up to the EI operator
func (l *lexer) skipInlineImage() {
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			l.pos > 0 && isWhitespace(l.data[l.pos-1]) &&
			(l.pos+2 == len(l.data) || isWhitespace(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

// encodeLiteral writes bytes as a PDF literal string
func encodeLiteral(value []byte) []byte {
	out := make([]byte, 0, len(value)+2)
	out = append(out, '(')
	for _, c := range value {
		switch c {
		case '(', ')', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, c)
		}
	}
	return append(out, ')')
}
