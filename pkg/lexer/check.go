package lexer

import (
	"fmt"
	"strings"

	"github.com/xplshn/sqltok/pkg/config"
	"github.com/xplshn/sqltok/pkg/token"
)

// Finding is a warning about a token that lexed fine but is probably not
// what the author meant.
type Finding struct {
	Warning config.Warning
	Index   int
	Token   token.Token
	Message string
}

// Check runs the enabled warnings over a successful token stream.
func Check(cfg *config.Config, tokens []token.Token) []Finding {
	var findings []Finding
	add := func(wt config.Warning, i int, format string, args ...any) {
		if cfg.IsWarningEnabled(wt) {
			findings = append(findings, Finding{Warning: wt, Index: i, Token: tokens[i], Message: fmt.Sprintf(format, args...)})
		}
	}

	for i, tok := range tokens {
		switch tok.Kind {
		case token.Identifier:
			lower := strings.ToLower(tok.Value)
			if token.IsKeyword(lower) && tok.Value != lower {
				add(config.WarnKeywordCase, i, "identifier '%s' is the keyword '%s' in another case", tok.Value, lower)
				continue
			}
			for _, kw := range token.Keywords {
				if len(lower) > len(kw) && strings.HasPrefix(lower, kw) {
					add(config.WarnKeywordPrefix, i, "identifier '%s' starts with the keyword '%s'", tok.Value, kw)
					break
				}
			}
		case token.String:
			if tok.Delim == '"' && token.IsKeywordFold(tok.Value) {
				add(config.WarnQuotedKeyword, i, "quoted identifier \"%s\" is spelled like a keyword", tok.Value)
			}
		case token.Numeric:
			if !exponentHasDigits(tok.Value) {
				add(config.WarnLooseExponent, i, "exponent of '%s' has no digits", tok.Value)
			}
		}
	}
	return findings
}

func exponentHasDigits(num string) bool {
	i := strings.IndexByte(num, 'e')
	if i < 0 {
		return true
	}
	exp := strings.TrimLeft(num[i+1:], "+-")
	return exp != "" && isDigit(exp[0])
}
