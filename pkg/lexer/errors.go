package lexer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xplshn/sqltok/pkg/token"
)

var (
	ErrUnterminated    = errors.New("unterminated literal")
	ErrMalformedNumber = errors.New("malformed numeric literal")
	ErrUnrecognized    = errors.New("unrecognized input")
	// ErrStalled means a rule reported a match without consuming input.
	ErrStalled = errors.New("rule matched no input")
)

// Error is the failure Tokenize returns.
type Error struct {
	Reason error
	Cursor token.Cursor
	// Last is the most recently accepted token, nil if there was none.
	Last *token.Token
	// Rule is set for ErrStalled.
	Rule string
}

func newError(reason error, cur token.Cursor, tokens []token.Token, rule string) *Error {
	e := &Error{Reason: reason, Cursor: cur, Rule: rule}
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		e.Last = &last
	}
	return e
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Cursor.Loc, e.Reason)
	if e.Rule != "" {
		fmt.Fprintf(&sb, " (%s rule)", e.Rule)
	}
	if e.Last != nil {
		fmt.Fprintf(&sb, " after `%s`", e.Last.Value)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Reason }
