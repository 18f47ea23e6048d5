package lexer

import (
	"fmt"

	"github.com/xplshn/sqltok/pkg/config"
	"github.com/xplshn/sqltok/pkg/token"
)

// Lexer applies its rules in registration order. Configure it before the
// first call to Tokenize; after that the rule list is only read, so one
// Lexer may tokenize independent inputs concurrently.
type Lexer struct {
	rules []Rule
}

// New returns a Lexer that tries rules in the given order.
func New(rules ...Rule) *Lexer {
	return &Lexer{rules: append([]Rule(nil), rules...)}
}

// NewDefault returns a Lexer with DefaultRules(cfg).
func NewDefault(cfg *config.Config) *Lexer {
	return New(DefaultRules(cfg)...)
}

// DefaultRules returns the five rules in precedence order: keyword, symbol,
// string, numeric, identifier. Keywords come before identifiers so that
// reserved words are never lexed as names.
func DefaultRules(cfg *config.Config) []Rule {
	return []Rule{
		KeywordRule{FoldCase: cfg.IsFeatureEnabled(config.FeatFoldCase)},
		SymbolRule{CRWhitespace: cfg.IsFeatureEnabled(config.FeatCRWhitespace)},
		StringRule{},
		NumericRule{StrictExponent: cfg.IsFeatureEnabled(config.FeatStrictExponent)},
		IdentifierRule{Quoted: cfg.IsFeatureEnabled(config.FeatQuotedIdents)},
	}
}

// AddRule appends r with the lowest precedence so far.
func (l *Lexer) AddRule(r Rule) { l.rules = append(l.rules, r) }

// RuleNames lists the rules in precedence order.
func (l *Lexer) RuleNames() []string {
	names := make([]string, len(l.rules))
	for i, r := range l.rules {
		names[i] = r.Name()
	}
	return names
}

// Tokenize lexes the whole of source. The first rule that matches at the
// cursor wins, whitespace is dropped, and scanning stops at the end of
// input or at the first position no rule matches. It is all or nothing: on
// error no tokens are returned.
func (l *Lexer) Tokenize(source string) ([]token.Token, error) {
	var tokens []token.Token
	var cur token.Cursor

outer:
	for !cur.AtEnd(source) {
		for _, r := range l.rules {
			tok, next, ok := r.Match(source, cur)
			if !ok {
				continue
			}
			if next.Offset <= cur.Offset {
				return nil, newError(ErrStalled, cur, tokens, r.Name())
			}

			cur = next
			if tok.Kind != token.Whitespace {
				tokens = append(tokens, tok)
			}
			continue outer
		}
		return nil, newError(l.classify(source, cur), cur, tokens, "")
	}
	return tokens, nil
}

// Lex is Tokenize with the result folded into a status line: the error text
// on failure, "lexed N tokens" on success.
func (l *Lexer) Lex(source string) ([]token.Token, string) {
	tokens, err := l.Tokenize(source)
	if err != nil {
		return nil, err.Error()
	}
	return tokens, fmt.Sprintf("lexed %d tokens", len(tokens))
}

// classify names the likely cause of a failure at cur from the byte that
// no rule accepted.
func (l *Lexer) classify(source string, cur token.Cursor) error {
	c, _ := cur.Peek(source)
	for _, r := range l.rules {
		switch r := r.(type) {
		case StringRule:
			if c == '\'' {
				return ErrUnterminated
			}
		case IdentifierRule:
			if r.Quoted && c == '"' {
				return ErrUnterminated
			}
		case NumericRule:
			if isDigit(c) || c == '.' {
				return ErrMalformedNumber
			}
		}
	}
	return ErrUnrecognized
}
