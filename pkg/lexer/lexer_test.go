package lexer

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xplshn/sqltok/pkg/config"
	"github.com/xplshn/sqltok/pkg/token"
)

func defaultLexer() *Lexer { return NewDefault(config.NewConfig()) }

func kinds(tokens []token.Token) []token.Kind {
	var out []token.Kind
	for _, t := range tokens {
		out = append(out, t.Kind)
	}
	return out
}

func TestTokenizeQuery(t *testing.T) {
	tokens, err := defaultLexer().Tokenize("select * from users where user_id = 100")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	want := []token.Token{
		{Value: "select", Kind: token.Keyword, Loc: loc(0, 6)},
		{Value: "*", Kind: token.Symbol, Loc: loc(0, 8)},
		{Value: "from", Kind: token.Keyword, Loc: loc(0, 13)},
		{Value: "users", Kind: token.Identifier, Loc: loc(0, 19)},
		{Value: "where", Kind: token.Keyword, Loc: loc(0, 25)},
		{Value: "user_id", Kind: token.Identifier, Loc: loc(0, 33)},
		{Value: "=", Kind: token.Symbol, Loc: loc(0, 35)},
		{Value: "100", Kind: token.Numeric, Loc: loc(0, 39)},
	}
	if diff := cmp.Diff(want, tokens); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeKinds(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []token.Kind
	}{
		{"keyword", "select", []token.Kind{token.Keyword}},
		{"keyword prefix", "selected", []token.Kind{token.Identifier}},
		{"keyword at end", "users as", []token.Kind{token.Identifier, token.Keyword}},
		{"create table", "create table users (id int, name text);", []token.Kind{
			token.Keyword, token.Keyword, token.Identifier, token.Symbol,
			token.Identifier, token.Keyword, token.Symbol,
			token.Identifier, token.Keyword, token.Symbol, token.Symbol,
		}},
		{"insert", "insert into users values (1, 'bob');", []token.Kind{
			token.Keyword, token.Keyword, token.Identifier, token.Keyword, token.Symbol,
			token.Numeric, token.Symbol, token.String, token.Symbol, token.Symbol,
		}},
		{"no spaces", "select*from t", []token.Kind{token.Keyword, token.Symbol, token.Keyword, token.Identifier}},
		{"quoted identifier", `select "from" from t`, []token.Kind{token.Keyword, token.String, token.Keyword, token.Identifier}},
		{"number then identifier", "12abc", []token.Kind{token.Numeric, token.Identifier}},
		{"crlf", "select\r\nx", []token.Kind{token.Keyword, token.Identifier}},
		{"only whitespace", " \t\n ", nil},
	}
	lx := defaultLexer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := lx.Tokenize(tt.source)
			if err != nil {
				t.Fatalf("Tokenize(%q): %v", tt.source, err)
			}
			if diff := cmp.Diff(tt.want, kinds(tokens)); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenizeEmpty(t *testing.T) {
	tokens, err := defaultLexer().Tokenize("")
	if err != nil {
		t.Fatalf("Tokenize(\"\"): %v", err)
	}
	if len(tokens) != 0 {
		t.Errorf("got %d tokens, want none", len(tokens))
	}

	tokens, hint := defaultLexer().Lex("")
	if len(tokens) != 0 || hint != "lexed 0 tokens" {
		t.Errorf("Lex(\"\") = %v, %q", tokens, hint)
	}
}

func TestTokenizeRoundTrip(t *testing.T) {
	var words []string
	words = append(words, token.Keywords...)
	words = append(words, token.Symbols...)
	words = append(words, token.Keywords...)

	lx := defaultLexer()
	for n := 1; n <= len(words); n++ {
		source := strings.Join(words[:n], " ")
		tokens, err := lx.Tokenize(source)
		if err != nil {
			t.Fatalf("Tokenize(%q): %v", source, err)
		}
		values := make([]string, len(tokens))
		for i, tok := range tokens {
			values[i] = tok.Value
		}
		if got := strings.Join(values, " "); got != source {
			t.Fatalf("round trip of %q gave %q", source, got)
		}
	}

	// runs of spaces and newlines normalize to single spaces
	tokens, err := lx.Tokenize("select  *\n\nfrom\t( )")
	if err != nil {
		t.Fatal(err)
	}
	values := make([]string, len(tokens))
	for i, tok := range tokens {
		values[i] = tok.Value
	}
	if got := strings.Join(values, " "); got != "select * from ( )" {
		t.Errorf("normalized round trip = %q", got)
	}
}

func TestTokenizeLocations(t *testing.T) {
	tokens, err := defaultLexer().Tokenize("select\n  name,\n  'a\nb' from t")
	if err != nil {
		t.Fatal(err)
	}
	got := make([]token.Location, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.Loc
	}
	want := []token.Location{loc(0, 6), loc(1, 6), loc(1, 7), loc(3, 2), loc(3, 7), loc(3, 9)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("locations mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		reason error
		at     token.Location
		last   string
		text   string
	}{
		{"unterminated string", "'abc", ErrUnterminated, loc(0, 0), "", "1:1: unterminated literal"},
		{"unterminated after token", "select 'abc", ErrUnterminated, loc(0, 7), "select", "1:8: unterminated literal after `select`"},
		{"unterminated quoted identifier", `select "abc`, ErrUnterminated, loc(0, 7), "select", ""},
		{"two periods", "1..2", ErrMalformedNumber, loc(0, 0), "", "1:1: malformed numeric literal"},
		{"exponent at end", "select 1e", ErrMalformedNumber, loc(0, 7), "select", ""},
		{"unknown byte", "select @x", ErrUnrecognized, loc(0, 7), "select", "1:8: unrecognized input after `select`"},
		{"second line", "select\n  #", ErrUnrecognized, loc(1, 2), "select", "2:3: unrecognized input after `select`"},
		{"leading underscore", "_x", ErrUnrecognized, loc(0, 0), "", ""},
	}
	lx := defaultLexer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := lx.Tokenize(tt.source)
			if err == nil {
				t.Fatalf("Tokenize(%q) = %v, want error", tt.source, tokens)
			}
			if tokens != nil {
				t.Errorf("tokens returned on failure: %v", tokens)
			}
			if !errors.Is(err, tt.reason) {
				t.Errorf("error %v is not %v", err, tt.reason)
			}

			var lexErr *Error
			if !errors.As(err, &lexErr) {
				t.Fatalf("error %T is not *Error", err)
			}
			if lexErr.Cursor.Loc != tt.at {
				t.Errorf("failure at %v, want %v", lexErr.Cursor.Loc, tt.at)
			}
			switch {
			case tt.last == "" && lexErr.Last != nil:
				t.Errorf("Last = %v, want nil", *lexErr.Last)
			case tt.last != "" && (lexErr.Last == nil || lexErr.Last.Value != tt.last):
				t.Errorf("Last = %v, want %q", lexErr.Last, tt.last)
			}
			if tt.text != "" && err.Error() != tt.text {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.text)
			}
		})
	}
}

func TestTokenizeStrictExponent(t *testing.T) {
	cfg := config.NewConfig()
	if _, err := NewDefault(cfg).Tokenize("1ex"); err != nil {
		t.Fatalf("compat Tokenize(1ex): %v", err)
	}

	cfg.SetFeature(config.FeatStrictExponent, true)
	_, err := NewDefault(cfg).Tokenize("1ex")
	if !errors.Is(err, ErrMalformedNumber) {
		t.Errorf("strict Tokenize(1ex) error = %v, want %v", err, ErrMalformedNumber)
	}
}

func TestTokenizeFoldCase(t *testing.T) {
	cfg := config.NewConfig()
	tokens, err := NewDefault(cfg).Tokenize("SELECT x")
	if err != nil {
		t.Fatal(err)
	}
	if tokens[0].Kind != token.Identifier {
		t.Errorf("without fold-case SELECT lexed as %v", tokens[0].Kind)
	}

	cfg.SetFeature(config.FeatFoldCase, true)
	tokens, err = NewDefault(cfg).Tokenize("SELECT x")
	if err != nil {
		t.Fatal(err)
	}
	if tokens[0].Kind != token.Keyword || tokens[0].Value != "select" {
		t.Errorf("with fold-case got %v", tokens[0])
	}
}

func TestLex(t *testing.T) {
	lx := defaultLexer()
	tokens, hint := lx.Lex("select * from t")
	if len(tokens) != 4 || hint != "lexed 4 tokens" {
		t.Errorf("Lex = %d tokens, %q", len(tokens), hint)
	}

	tokens, hint = lx.Lex("select 'x")
	if tokens != nil {
		t.Errorf("Lex returned tokens on failure: %v", tokens)
	}
	if want := "1:8: unterminated literal after `select`"; hint != want {
		t.Errorf("hint = %q, want %q", hint, want)
	}
}

// stallRule claims a match without consuming anything.
type stallRule struct{}

func (stallRule) rule()        {}
func (stallRule) Name() string { return "stall" }
func (stallRule) Match(_ string, ic token.Cursor) (token.Token, token.Cursor, bool) {
	return token.Token{Kind: token.Whitespace, Loc: ic.Loc}, ic, true
}

func TestTokenizeStalledRule(t *testing.T) {
	lx := New(KeywordRule{}, stallRule{})
	_, err := lx.Tokenize("select x")
	if !errors.Is(err, ErrStalled) {
		t.Fatalf("error = %v, want %v", err, ErrStalled)
	}
	var lexErr *Error
	if !errors.As(err, &lexErr) || lexErr.Rule != "stall" || lexErr.Cursor.Offset != 6 {
		t.Errorf("error = %#v", err)
	}
	if want := "1:7: rule matched no input (stall rule) after `select`"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestRuleOrder(t *testing.T) {
	lx := NewDefault(config.NewConfig())
	want := []string{"keyword", "symbol", "string", "numeric", "identifier"}
	if diff := cmp.Diff(want, lx.RuleNames()); diff != "" {
		t.Errorf("rule order mismatch (-want +got):\n%s", diff)
	}

	// with the identifier rule first, keywords are lexed as names
	swapped := New(IdentifierRule{}, KeywordRule{}, SymbolRule{})
	tokens, err := swapped.Tokenize("select x")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]token.Kind{token.Identifier, token.Identifier}, kinds(tokens)); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	partial := New(SymbolRule{})
	if _, err := partial.Tokenize("x"); !errors.Is(err, ErrUnrecognized) {
		t.Errorf("symbol-only lexer error = %v", err)
	}
	partial.AddRule(IdentifierRule{})
	if _, err := partial.Tokenize("x"); err != nil {
		t.Errorf("after AddRule: %v", err)
	}
}

func TestTokenizeConcurrent(t *testing.T) {
	lx := defaultLexer()
	inputs := []string{
		"select * from users where user_id = 100",
		"insert into t values ('it''s', 1.5e-10);",
		"create table t (a int, b text)",
		"select 'oops",
	}
	want := make([][]token.Token, len(inputs))
	for i, in := range inputs {
		want[i], _ = lx.Tokenize(in)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, in := range inputs {
				got, _ := lx.Tokenize(in)
				if diff := cmp.Diff(want[i], got); diff != "" {
					t.Errorf("concurrent Tokenize(%q) mismatch:\n%s", in, diff)
				}
			}
		}()
	}
	wg.Wait()
}
