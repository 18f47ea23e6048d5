package lexer

import (
	"strings"

	"github.com/xplshn/sqltok/pkg/token"
)

// Rule recognises one kind of token at a cursor. Match is a pure function of
// its arguments: on success it returns the token and the cursor just past
// it, on failure ok is false and the cursor is only meaningful for
// diagnostics. The set of rules is closed; the five implementations below
// are the only ones.
type Rule interface {
	Name() string
	Match(source string, ic token.Cursor) (tok token.Token, cur token.Cursor, ok bool)
	rule()
}

// KeywordRule lexes the words in token.Keywords. With FoldCase the match
// ignores ASCII case and the value is the canonical lower case spelling,
// which always has the length of the source text it replaces.
type KeywordRule struct {
	FoldCase bool
}

// SymbolRule lexes token.Symbols and the whitespace the driver skips.
type SymbolRule struct {
	CRWhitespace bool
}

// StringRule lexes 'single quoted' literals.
type StringRule struct{}

// NumericRule lexes decimal numbers with an optional exponent.
type NumericRule struct {
	StrictExponent bool
}

// IdentifierRule lexes bare names and, with Quoted, "quoted" ones.
type IdentifierRule struct {
	Quoted bool
}

func (KeywordRule) rule()    {}
func (SymbolRule) rule()     {}
func (StringRule) rule()     {}
func (NumericRule) rule()    {}
func (IdentifierRule) rule() {}

func (KeywordRule) Name() string    { return "keyword" }
func (SymbolRule) Name() string     { return "symbol" }
func (StringRule) Name() string     { return "string" }
func (NumericRule) Name() string    { return "numeric" }
func (IdentifierRule) Name() string { return "identifier" }

// Match takes the longest keyword at ic, provided it is not the start of a
// longer word: "select" is a keyword, "selected" is left to the identifier
// rule.
func (r KeywordRule) Match(source string, ic token.Cursor) (token.Token, token.Cursor, bool) {
	match := longestMatch(source, ic, token.Keywords, r.FoldCase)
	if match == "" {
		return token.Token{}, ic, false
	}
	end := ic.Offset + uint(len(match))
	if end < uint(len(source)) && isIdentCont(source[end]) {
		return token.Token{}, ic, false
	}

	cur := ic.Advance(source, uint(len(match)))
	return token.Token{Value: match, Kind: token.Keyword, Loc: cur.Loc}, cur, true
}

// Match reports whitespace as a Whitespace token for the driver to drop, and
// otherwise takes the longest symbol at ic.
func (r SymbolRule) Match(source string, ic token.Cursor) (token.Token, token.Cursor, bool) {
	c, ok := ic.Peek(source)
	if !ok {
		return token.Token{}, ic, false
	}

	switch {
	case c == '\n', c == '\t', c == ' ', c == '\r' && r.CRWhitespace:
		cur := ic.Advance(source, 1)
		return token.Token{Kind: token.Whitespace, Loc: cur.Loc}, cur, true
	}

	match := longestMatch(source, ic, token.Symbols, false)
	if match == "" {
		return token.Token{}, ic, false
	}

	cur := ic.Advance(source, uint(len(match)))
	return token.Token{Value: match, Kind: token.Symbol, Loc: cur.Loc}, cur, true
}

func (StringRule) Match(source string, ic token.Cursor) (token.Token, token.Cursor, bool) {
	return lexCharacterDelimited(source, ic, '\'')
}

// Match scans digits with at most one '.' and at most one 'e', where the
// 'e' may be followed by a sign. A '.' after the 'e' is malformed. Any other
// byte ends the literal.
func (r NumericRule) Match(source string, ic token.Cursor) (token.Token, token.Cursor, bool) {
	cur := ic
	hasPeriod, hasExpMarker := false, false

scan:
	for !cur.AtEnd(source) {
		c := source[cur.Offset]
		digit := isDigit(c)
		isPeriod := c == '.'
		isExpMarker := c == 'e'

		if cur.Offset == ic.Offset && !digit && !isPeriod {
			return token.Token{}, ic, false
		}

		switch {
		case isPeriod:
			if hasPeriod {
				return token.Token{}, ic, false
			}
			hasPeriod = true
		case isExpMarker:
			if hasExpMarker {
				return token.Token{}, ic, false
			}
			hasPeriod, hasExpMarker = true, true

			if cur.Offset == uint(len(source))-1 {
				return token.Token{}, ic, false
			}
			if next := source[cur.Offset+1]; next == '+' || next == '-' {
				cur = cur.Advance(source, 1)
			}
			if r.StrictExponent {
				after := cur.Offset + 1
				if after >= uint(len(source)) || !isDigit(source[after]) {
					return token.Token{}, ic, false
				}
			}
		case !digit:
			break scan
		}
		cur = cur.Advance(source, 1)
	}

	if cur.Offset == ic.Offset {
		return token.Token{}, ic, false
	}
	value := source[ic.Offset:cur.Offset]
	return token.Token{Value: value, Kind: token.Numeric, Loc: cur.Loc}, cur, true
}

// Match tries a "quoted identifier" first, then a bare one: a letter followed
// by letters, digits, '$' and '_'.
func (r IdentifierRule) Match(source string, ic token.Cursor) (token.Token, token.Cursor, bool) {
	if r.Quoted {
		if tok, cur, ok := lexCharacterDelimited(source, ic, '"'); ok {
			return tok, cur, true
		}
	}

	c, ok := ic.Peek(source)
	if !ok || !isAlpha(c) {
		return token.Token{}, ic, false
	}

	end := ic.Offset + 1
	for end < uint(len(source)) && isIdentCont(source[end]) {
		end++
	}

	cur := ic.Advance(source, end-ic.Offset)
	return token.Token{Value: source[ic.Offset:end], Kind: token.Identifier, Loc: cur.Loc}, cur, true
}

// lexCharacterDelimited scans a literal opened and closed by delimiter. A
// doubled delimiter inside stands for one literal delimiter and does not
// close the literal. The value is the unescaped text between the quotes.
func lexCharacterDelimited(source string, ic token.Cursor, delimiter byte) (token.Token, token.Cursor, bool) {
	if c, ok := ic.Peek(source); !ok || c != delimiter {
		return token.Token{}, ic, false
	}
	// an opening delimiter on the last byte can never close
	if ic.Offset == uint(len(source))-1 {
		return token.Token{}, ic, false
	}

	cur := ic.Advance(source, 1)
	var sb strings.Builder
	for !cur.AtEnd(source) {
		c := source[cur.Offset]
		if c != delimiter {
			sb.WriteByte(c)
			cur = cur.Advance(source, 1)
			continue
		}

		next := cur.Advance(source, 1)
		if nc, ok := next.Peek(source); ok && nc == delimiter {
			sb.WriteByte(delimiter)
			cur = next.Advance(source, 1)
			continue
		}
		return token.Token{Value: sb.String(), Kind: token.String, Loc: next.Loc, Delim: delimiter}, next, true
	}
	return token.Token{}, ic, false
}

func isAlpha(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentCont(c byte) bool { return isAlpha(c) || isDigit(c) || c == '$' || c == '_' }
