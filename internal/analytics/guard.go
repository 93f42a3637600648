package analytics

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrBlockedQuery = errors.New("analytics: query blocked")

// denylist is matched against the user's question as case-insensitive
// substrings.
var denylist = []string{"DROP", "DELETE", "INSERT", "UPDATE", "CREATE", "ALTER"}

// Blocked reports whether question mentions a denylisted keyword anywhere.
func Blocked(question string) bool {
	upper := strings.ToUpper(question)
	for _, word := range denylist {
		if strings.Contains(upper, word) {
			return true
		}
	}
	return false
}

// writeKeyword matches whole SQL keywords that can mutate state or reach
// outside the scoped table, so column names like deleted_at pass.
var writeKeyword = regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|CREATE|ALTER|REPLACE|UPSERT|MERGE|TRUNCATE|ATTACH|DETACH|PRAGMA|VACUUM|REINDEX|GRANT|REVOKE|COPY|CALL|EXECUTE|INTO|LOAD_EXTENSION)\b`)

// CheckReadOnly accepts a single SELECT (or WITH ... SELECT) statement that
// reads only from table.
func CheckReadOnly(query, table string) error {
	q := strings.TrimSpace(query)
	q = strings.TrimSpace(strings.TrimRight(q, "; \t\n"))
	if q == "" {
		return fmt.Errorf("%w: empty statement", ErrBlockedQuery)
	}
	if strings.Contains(q, "--") || strings.Contains(q, "/*") {
		return fmt.Errorf("%w: comments are not allowed", ErrBlockedQuery)
	}

	toks, err := tokenize(q)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedQuery, err)
	}
	for _, t := range toks {
		if t.kind == tokPunct && t.text == ";" {
			return fmt.Errorf("%w: multiple statements", ErrBlockedQuery)
		}
	}
	first := strings.ToUpper(toks[0].text)
	if toks[0].kind != tokWord || (first != "SELECT" && first != "WITH") {
		return fmt.Errorf("%w: only SELECT statements are allowed", ErrBlockedQuery)
	}
	for _, t := range toks {
		if t.kind == tokWord && writeKeyword.MatchString(t.text) {
			return fmt.Errorf("%w: keyword %s is not allowed", ErrBlockedQuery, strings.ToUpper(t.text))
		}
	}

	ctes := cteNames(toks)
	for _, name := range referencedTables(toks) {
		if strings.EqualFold(name, table) || ctes[strings.ToLower(name)] {
			continue
		}
		return fmt.Errorf("%w: table %s is out of scope", ErrBlockedQuery, name)
	}
	return nil
}

type tokKind int

const (
	tokWord tokKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '\'':
			j := i + 1
			for ; j < len(s); j++ {
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						j++
						continue
					}
					break
				}
			}
			if j >= len(s) {
				return nil, errors.New("unterminated string")
			}
			toks = append(toks, token{tokString, s[i+1 : j]})
			i = j + 1
		case c == '"' || c == '`' || c == '[':
			closing := c
			if c == '[' {
				closing = ']'
			}
			j := strings.IndexByte(s[i+1:], closing)
			if j < 0 {
				return nil, errors.New("unterminated identifier")
			}
			toks = append(toks, token{tokIdent, s[i+1 : i+1+j]})
			i += j + 2
		case isIdentByte(c):
			j := i
			for j < len(s) && (isIdentByte(s[j]) || s[j] == '.') {
				j++
			}
			kind := tokWord
			if c >= '0' && c <= '9' {
				kind = tokNumber
			}
			toks = append(toks, token{kind, s[i:j]})
			i = j
		default:
			toks = append(toks, token{tokPunct, string(c)})
			i++
		}
	}
	if len(toks) == 0 {
		return nil, errors.New("empty statement")
	}
	return toks, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isName(t token) bool {
	return t.kind == tokWord || t.kind == tokIdent
}

// referencedTables collects the table names that follow FROM or JOIN,
// including comma-separated lists.
func referencedTables(toks []token) []string {
	var names []string
	for i := 0; i < len(toks); i++ {
		kw := strings.ToUpper(toks[i].text)
		if toks[i].kind != tokWord || (kw != "FROM" && kw != "JOIN") {
			continue
		}
		j := i + 1
		for j < len(toks) && isName(toks[j]) {
			names = append(names, toks[j].text)
			j++
			// optional alias
			if j < len(toks) && toks[j].kind == tokWord && strings.EqualFold(toks[j].text, "AS") {
				j++
			}
			if j < len(toks) && isName(toks[j]) && !isClauseKeyword(toks[j].text) {
				j++
			}
			if j < len(toks) && toks[j].kind == tokPunct && toks[j].text == "," {
				j++
				continue
			}
			break
		}
	}
	return names
}

func cteNames(toks []token) map[string]bool {
	names := map[string]bool{}
	if !strings.EqualFold(toks[0].text, "WITH") {
		return names
	}
	depth := 0
	expectName := true
	for i := 1; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.kind == tokPunct && t.text == "(":
			depth++
		case t.kind == tokPunct && t.text == ")":
			depth--
		case depth == 0 && t.kind == tokPunct && t.text == ",":
			expectName = true
		case depth == 0 && expectName && isName(t) && !strings.EqualFold(t.text, "RECURSIVE"):
			names[strings.ToLower(t.text)] = true
			expectName = false
		case depth == 0 && t.kind == tokWord && strings.EqualFold(t.text, "SELECT"):
			return names
		}
	}
	return names
}

var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true,
	"JOIN": true, "LEFT": true, "RIGHT": true, "INNER": true, "OUTER": true,
	"CROSS": true, "FULL": true, "NATURAL": true, "ON": true, "USING": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "OFFSET": true, "WINDOW": true,
}

func isClauseKeyword(s string) bool {
	return clauseKeywords[strings.ToUpper(s)]
}
