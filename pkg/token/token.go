package token

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Keyword Kind = iota
	Symbol
	Identifier
	String
	Numeric
	// Whitespace never leaves the lexer; the driver drops it.
	Whitespace
)

var KindNames = map[Kind]string{
	Keyword:    "Keyword",
	Symbol:     "Symbol",
	Identifier: "Identifier",
	String:     "String",
	Numeric:    "Numeric",
	Whitespace: "Whitespace",
}

// Reverse mapping from the printed name back to the Kind
var KindByName = make(map[string]Kind)

func init() {
	for k, name := range KindNames {
		KindByName[name] = k
	}
}

func (k Kind) String() string {
	if name, ok := KindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	kind, ok := KindByName[string(b)]
	if !ok {
		return fmt.Errorf("unknown token kind '%s'", b)
	}
	*k = kind
	return nil
}

const (
	SelectKeyword = "select"
	FromKeyword   = "from"
	WhereKeyword  = "where"
	AsKeyword     = "as"
	TableKeyword  = "table"
	CreateKeyword = "create"
	InsertKeyword = "insert"
	IntoKeyword   = "into"
	ValuesKeyword = "values"
	IntKeyword    = "int"
	TextKeyword   = "text"
)

const (
	EqualSymbol      = "="
	SemicolonSymbol  = ";"
	AsteriskSymbol   = "*"
	CommaSymbol      = ","
	LeftParenSymbol  = "("
	RightParenSymbol = ")"
)

// Keywords and Symbols are the fixed vocabularies the longest-match rules
// choose from. They are read-only after program start.
var (
	Keywords = []string{
		SelectKeyword, FromKeyword, WhereKeyword, AsKeyword, TableKeyword, CreateKeyword,
		InsertKeyword, IntoKeyword, ValuesKeyword, IntKeyword, TextKeyword,
	}
	Symbols = []string{
		EqualSymbol, SemicolonSymbol, AsteriskSymbol,
		CommaSymbol, LeftParenSymbol, RightParenSymbol,
	}
)

var keywordSet = make(map[string]struct{}, len(Keywords))

func init() {
	for _, kw := range Keywords {
		keywordSet[kw] = struct{}{}
	}
}

// IsKeyword reports whether word is exactly a vocabulary keyword.
func IsKeyword(word string) bool {
	_, ok := keywordSet[word]
	return ok
}

// IsKeywordFold is IsKeyword ignoring ASCII case.
func IsKeywordFold(word string) bool { return IsKeyword(strings.ToLower(word)) }

type Token struct {
	Value string `json:"value"`
	Kind  Kind   `json:"kind"`
	// Loc is the location just past the last byte of the token.
	Loc Location `json:"loc"`
	// Delim is the quote that delimited a String token, 0 otherwise.
	Delim byte `json:"delim,omitempty"`
}

// String prints the token with its location 1-based, as Location does.
func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Value, t.Loc)
}
