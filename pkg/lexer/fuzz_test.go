package lexer

import (
	"testing"

	"github.com/xplshn/sqltok/pkg/config"
	"github.com/xplshn/sqltok/pkg/token"
)

func FuzzTokenize(f *testing.F) {
	for _, seed := range []string{
		"select * from users where user_id = 100",
		"insert into t values ('it''s', 1.5e-10);",
		`create table "my table" (a int, b text)`,
		"1..2",
		"'abc",
		"select\r\n\t1e",
		"",
	} {
		f.Add(seed)
	}

	lx := NewDefault(config.NewConfig())
	f.Fuzz(func(t *testing.T, source string) {
		tokens, err := lx.Tokenize(source)
		if err != nil {
			if tokens != nil {
				t.Fatalf("Tokenize(%q) returned %d tokens with error %v", source, len(tokens), err)
			}
			return
		}

		var prev token.Location
		for i, tok := range tokens {
			if tok.Kind == token.Whitespace {
				t.Fatalf("whitespace token %d leaked from %q", i, source)
			}
			if tok.Loc.Line < prev.Line || (tok.Loc.Line == prev.Line && tok.Loc.Col <= prev.Col && i > 0) {
				t.Fatalf("token %d of %q at %v does not follow %v", i, source, tok.Loc, prev)
			}
			prev = tok.Loc
		}
	})
}
