package jsontok

type expect uint8

const (
	expectValue       expect = iota // top-level, after ':' or after ',' in an array
	expectValueOrEnd                // right after '['
	expectKey                       // after ',' in an object
	expectKeyOrEnd                  // right after '{'
	expectColon                     // after a key
	expectCommaOrEnd                // after a member or element
	expectNothing                   // the top-level value is complete
)

type parser struct {
	data   []byte
	pos    int
	budget int

	tokens []Token
	// open containers, as indices into tokens
	stack []int
	state expect
}

// Parse tokenizes data, producing at most budget tokens.
//
// An empty (or all whitespace) input yields no tokens and no error. Parse
// never allocates more than budget tokens: documents that need more fail
// with ErrTokenBudget.
func Parse(data []byte, budget int) ([]Token, error) {
	p := &parser{
		data:   data,
		budget: budget,
		tokens: make([]Token, 0, max(0, min(budget, 16))),
		state:  expectValue,
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.tokens, nil
}

func (p *parser) run() error {
	for {
		p.skipSpace()

		if p.pos >= len(p.data) {
			if p.state == expectNothing || (p.state == expectValue && len(p.tokens) == 0) {
				return nil
			}
			return ErrTruncated
		}

		c := p.data[p.pos]
		switch p.state {
		case expectNothing:
			return ErrInvalid

		case expectColon:
			if c != ':' {
				return ErrInvalid
			}
			p.pos++
			p.state = expectValue

		case expectCommaOrEnd:
			switch c {
			case ',':
				p.pos++
				if p.topType() == Object {
					p.state = expectKey
				} else {
					p.state = expectValue
				}
			case '}', ']':
				if err := p.close(c); err != nil {
					return err
				}
			default:
				return ErrInvalid
			}

		case expectKeyOrEnd, expectKey:
			if c == '}' && p.state == expectKeyOrEnd {
				if err := p.close(c); err != nil {
					return err
				}
				continue
			}
			if c != '"' {
				return ErrInvalid
			}
			if err := p.parseString(); err != nil {
				return err
			}
			// the key is parented by the object and parents the value
			p.tokens[p.top()].Size++
			p.tokens[len(p.tokens)-1].Size = 1
			p.state = expectColon

		case expectValueOrEnd, expectValue:
			if c == ']' && p.state == expectValueOrEnd {
				if err := p.close(c); err != nil {
					return err
				}
				continue
			}
			if err := p.parseValue(c); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseValue(c byte) error {
	switch c {
	case '{', '[':
		typ := Object
		next := expectKeyOrEnd
		if c == '[' {
			typ = Array
			next = expectValueOrEnd
		}

		p.countChild()
		idx, err := p.alloc(typ, p.pos)
		if err != nil {
			return err
		}
		p.stack = append(p.stack, idx)
		p.pos++
		p.state = next
		return nil

	case '"':
		p.countChild()
		if err := p.parseString(); err != nil {
			return err
		}
		p.valueDone()
		return nil

	case '}', ']', ',', ':':
		return ErrInvalid
	}

	p.countChild()
	if err := p.parsePrimitive(); err != nil {
		return err
	}
	p.valueDone()
	return nil
}

// countChild accounts a new array element to its parent. Object members
// are counted on their key.
func (p *parser) countChild() {
	if len(p.stack) > 0 && p.topType() == Array {
		p.tokens[p.top()].Size++
	}
}

func (p *parser) close(c byte) error {
	if len(p.stack) == 0 {
		return ErrInvalid
	}

	want := Object
	if c == ']' {
		want = Array
	}

	idx := p.top()
	if p.tokens[idx].Type != want {
		return ErrInvalid
	}

	p.pos++
	p.tokens[idx].End = p.pos
	p.stack = p.stack[:len(p.stack)-1]
	p.valueDone()
	return nil
}

// valueDone moves the state machine past a complete value.
func (p *parser) valueDone() {
	if len(p.stack) == 0 {
		p.state = expectNothing
		return
	}
	p.state = expectCommaOrEnd
}

func (p *parser) alloc(typ Type, start int) (int, error) {
	if len(p.tokens) >= p.budget {
		return -1, ErrTokenBudget
	}
	p.tokens = append(p.tokens, Token{Type: typ, Start: start, End: -1})
	return len(p.tokens) - 1, nil
}

func (p *parser) top() int {
	return p.stack[len(p.stack)-1]
}

func (p *parser) topType() Type {
	return p.tokens[p.top()].Type
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseString() error {
	start := p.pos + 1

	for i := start; i < len(p.data); i++ {
		c := p.data[i]
		switch {
		case c == '"':
			idx, err := p.alloc(String, start)
			if err != nil {
				return err
			}
			p.tokens[idx].End = i
			p.pos = i + 1
			return nil

		case c == '\\':
			i++
			if i >= len(p.data) {
				return ErrTruncated
			}
			switch p.data[i] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
			case 'u':
				for j := 0; j < 4; j++ {
					i++
					if i >= len(p.data) {
						return ErrTruncated
					}
					if !isHex(p.data[i]) {
						return ErrInvalid
					}
				}
			default:
				return ErrInvalid
			}

		case c < 0x20:
			return ErrInvalid
		}
	}
	return ErrTruncated
}

func (p *parser) parsePrimitive() error {
	start := p.pos
	end := start
	for end < len(p.data) && !isDelim(p.data[end]) {
		end++
	}

	raw := p.data[start:end]
	atEOF := end == len(p.data)

	var typ Type
	switch raw[0] {
	case 't', 'f':
		typ = Bool
	case 'n':
		typ = Null
	default:
		typ = Number
	}

	var valid bool
	switch typ {
	case Bool:
		valid = string(raw) == "true" || string(raw) == "false"
	case Null:
		valid = string(raw) == "null"
	default:
		valid = isNumber(raw)
	}

	if !valid {
		if atEOF && isPrefixOfValid(typ, raw) {
			return ErrTruncated
		}
		return ErrInvalid
	}

	idx, err := p.alloc(typ, start)
	if err != nil {
		return err
	}
	p.tokens[idx].End = end
	p.pos = end
	return nil
}

func isDelim(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',', ':', ']', '}', '[', '{', '"':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isNumber validates raw against the JSON number grammar.
func isNumber(raw []byte) bool {
	i := 0
	if i < len(raw) && raw[i] == '-' {
		i++
	}

	switch {
	case i >= len(raw):
		return false
	case raw[i] == '0':
		i++
	case isDigit(raw[i]):
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	default:
		return false
	}

	if i < len(raw) && raw[i] == '.' {
		i++
		if i >= len(raw) || !isDigit(raw[i]) {
			return false
		}
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	}

	if i < len(raw) && (raw[i] == 'e' || raw[i] == 'E') {
		i++
		if i < len(raw) && (raw[i] == '+' || raw[i] == '-') {
			i++
		}
		if i >= len(raw) || !isDigit(raw[i]) {
			return false
		}
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	}
	return i == len(raw)
}

// isPrefixOfValid reports whether raw could still become a valid primitive
// if more input followed.
func isPrefixOfValid(typ Type, raw []byte) bool {
	switch typ {
	case Bool:
		return isPrefix(raw, "true") || isPrefix(raw, "false")
	case Null:
		return isPrefix(raw, "null")
	}

	return isNumberPrefix(raw)
}

// isNumberPrefix reports whether raw is a prefix of the JSON number grammar.
func isNumberPrefix(raw []byte) bool {
	i := 0
	if i < len(raw) && raw[i] == '-' {
		i++
	}
	if i == len(raw) {
		return true
	}

	switch {
	case raw[i] == '0':
		i++
	case isDigit(raw[i]):
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	default:
		return false
	}

	if i < len(raw) && raw[i] == '.' {
		i++
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	}

	if i < len(raw) && (raw[i] == 'e' || raw[i] == 'E') {
		i++
		if i < len(raw) && (raw[i] == '+' || raw[i] == '-') {
			i++
		}
		for i < len(raw) && isDigit(raw[i]) {
			i++
		}
	}
	return i == len(raw)
}

func isPrefix(raw []byte, lit string) bool {
	return len(raw) < len(lit) && lit[:len(raw)] == string(raw)
}
