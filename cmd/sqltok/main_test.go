package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplshn/sqltok/pkg/token"
)

func runSqltok(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(strings.NewReader(stdin), &stdout, &stderr).Run(args)
	return stdout.String(), stderr.String(), err
}

func TestDemoQuery(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	stdout, stderr, err := runSqltok(t, "")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	assert.True(t, strings.HasPrefix(stdout, "hint: lexed 8 tokens\n\n"), stdout)
	assert.Regexp(t, `Keyword\s+"select"\s+1:7\n`, stdout)
	assert.Regexp(t, `Identifier\s+"user_id"\s+1:34\n`, stdout)
	assert.Regexp(t, `Numeric\s+"100"\s+1:40\n`, stdout)
	assert.NotContains(t, stdout, "== ")
	assert.True(t, strings.HasSuffix(stdout, strings.Repeat("-", 20)+"\n"))
}

func TestUnterminatedFile(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	path := filepath.Join(t.TempDir(), "unterminated.sql")
	require.NoError(t, os.WriteFile(path, []byte("select name from users where name = 'bob\n"), 0644))

	stdout, stderr, err := runSqltok(t, "", path)
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "hint: 1:37: unterminated literal after `=`\n\n", stdout)
	assert.Equal(t, path+":1:37: error: unterminated literal after `=`\n"+
		"  select name from users where name = 'bob\n"+
		"  "+strings.Repeat(" ", 36)+"^\n", stderr)
}

func TestStopsAtFirstFailure(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	stdout, _, err := runSqltok(t, "", "-e", "select 1..2", "-e", "select 1")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stdout, "== <expr 1>\nhint: 1:8: malformed numeric literal after `select`")
	assert.NotContains(t, stdout, "<expr 2>")
}

func TestWarnings(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	const query = "select selected from t"

	_, stderr, err := runSqltok(t, "", "-e", query)
	require.NoError(t, err)
	assert.Empty(t, stderr)

	_, stderr, err = runSqltok(t, "", "-Wall", "-e", query)
	require.NoError(t, err)
	assert.Equal(t, "<expr 1>:1:8: warning: identifier 'selected' starts with the keyword 'select' [-Wkeyword-prefix]\n"+
		"  select selected from t\n"+
		"         ^~~~~~~\n", stderr)

	t.Setenv("SQLTOK_FLAGS", "-Wkeyword-prefix")
	_, stderr, err = runSqltok(t, "", "-e", query)
	require.NoError(t, err)
	assert.Contains(t, stderr, "[-Wkeyword-prefix]")
}

func TestJSONFromStdin(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	stdout, stderr, err := runSqltok(t, "select 'it''s'", "--format", "json", "-")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	var results []jsonResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	assert.Equal(t, []jsonResult{{
		Input: "<stdin>",
		Hint:  "lexed 2 tokens",
		Tokens: []jsonToken{
			{Value: "select", Kind: token.Keyword, Line: 0, Col: 6},
			{Value: "it's", Kind: token.String, Line: 0, Col: 14, Delim: "'"},
		},
	}}, results)
}

func TestStrictMode(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	stdout, _, err := runSqltok(t, "", "--std", "strict", "-f", "json", "-e", "SELECT 1e5")
	require.NoError(t, err)
	var results []jsonResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &results))
	require.Len(t, results, 1)
	assert.Equal(t, []jsonToken{
		{Value: "select", Kind: token.Keyword, Line: 0, Col: 6},
		{Value: "1e5", Kind: token.Numeric, Line: 0, Col: 10},
	}, results[0].Tokens)

	_, stderr, err := runSqltok(t, "", "--std", "strict", "-e", "select 1ex")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "malformed numeric literal after `select`")
}

func TestStats(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	_, stderr, err := runSqltok(t, "", "--stats")
	require.NoError(t, err)
	assert.Contains(t, stderr, "sqltok: info: <demo>: 8 token(s) from 39 B in ")
}

func TestUsageErrors(t *testing.T) {
	t.Setenv("SQLTOK_FLAGS", "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad format", []string{"--format", "yaml"}, "<input>:1:1: error: unsupported format 'yaml'. Supported: 'text', 'json'"},
		{"bad mode", []string{"--std", "ansi"}, "unsupported mode 'ansi'"},
		{"unknown warning", []string{"-Wbogus"}, "unknown warning 'bogus'"},
		{"missing file", []string{"does-not-exist.sql"}, "could not read 'does-not-exist.sql'"},
		{"unknown flag", []string{"--bogus"}, "unknown flag: --bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := runSqltok(t, "", tt.args...)
			assert.Error(t, err)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.want)
		})
	}

	t.Setenv("SQLTOK_FLAGS", "-Wnope")
	_, stderr, err := runSqltok(t, "")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "SQLTOK_FLAGS: unknown warning 'nope'")
}

func TestHelp(t *testing.T) {
	stdout, _, err := runSqltok(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Warning Flags")
	assert.Contains(t, stdout, "keyword-prefix")
	assert.Contains(t, stdout, "-e <query>, --expr <query>")
}
