package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smartlibrary/internal/llm"
)

// Temperature is the sampling temperature for the SQL agent.
const Temperature = 0

const (
	// MaxResultRows caps rows returned from a generated query.
	MaxResultRows = 50

	NoAnswerMessage = "I can't answer that from the library inventory."

	noQueryMarker = "NO_QUERY"
)

// Agent answers a natural-language question from the data visible in scope.
type Agent interface {
	Answer(ctx context.Context, question string, scope Scope) (string, error)
}

// SQLAgent asks the model for one SQL query over the scoped table, runs it
// read-only and has the model phrase the result.
type SQLAgent struct {
	source    Source
	completer llm.Completer
	// corrections is how many times a rejected or failing query is sent back
	// to the model.
	corrections int
}

func NewSQLAgent(source Source, completer llm.Completer) *SQLAgent {
	return &SQLAgent{source: source, completer: completer, corrections: 1}
}

func (a *SQLAgent) Answer(ctx context.Context, question string, scope Scope) (string, error) {
	info, err := a.source.TableInfo(ctx, scope.Table, scope.SampleRows)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", scope.Table, err)
	}

	prompt := queryPrompt(a.source.Dialect(), info, scope.Notes, question)
	var (
		query  string
		result Table
	)
	for attempt := 0; ; attempt++ {
		reply, err := a.completer.Complete(ctx, prompt)
		if err != nil {
			return "", err
		}
		query = extractSQL(reply)
		if strings.EqualFold(strings.TrimSpace(query), noQueryMarker) {
			return NoAnswerMessage, nil
		}

		result, err = a.run(ctx, query, scope.Table)
		if err == nil {
			break
		}
		if attempt >= a.corrections || ctx.Err() != nil {
			return "", fmt.Errorf("query %q: %w", query, err)
		}
		prompt = correctionPrompt(prompt, query, err)
	}

	return a.completer.Complete(ctx, answerPrompt(question, query, result))
}

func (a *SQLAgent) run(ctx context.Context, query, table string) (Table, error) {
	if err := CheckReadOnly(query, table); err != nil {
		return Table{}, err
	}
	return a.source.QueryReadOnly(ctx, query, MaxResultRows)
}

// extractSQL pulls the statement out of a reply that may wrap it in a
// markdown code fence or prefix it with "SQLQuery:".
func extractSQL(reply string) string {
	s := strings.TrimSpace(reply)
	if start := strings.Index(s, "```"); start >= 0 {
		rest := s[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			lang := strings.TrimSpace(rest[:nl])
			if lang == "" || strings.EqualFold(lang, "sql") || strings.EqualFold(lang, "sqlite") || strings.EqualFold(lang, "postgresql") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}
	for _, prefix := range []string{"SQLQuery:", "SQL:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

func queryPrompt(dialect string, info TableInfo, notes, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s expert. Given an input question, write one syntactically correct %s query that answers it.\n", dialect, dialect)
	fmt.Fprintf(&b, "Only read from the table below. Never write, create or modify data. Query at most %d rows unless the question asks for a specific number.\n", MaxResultRows)
	b.WriteString("Select only the columns needed to answer the question.\n")
	fmt.Fprintf(&b, "If the question cannot be answered from this table, reply with exactly %s.\n", noQueryMarker)
	b.WriteString("Reply with the SQL statement only, without explanation.\n\n")
	b.WriteString(info.String())
	if notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", notes)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\nSQLQuery:", strings.TrimSpace(question))
	return b.String()
}

func correctionPrompt(previous, query string, err error) string {
	reason := err.Error()
	if errors.Is(err, ErrBlockedQuery) {
		reason = "the statement was rejected: " + reason
	}
	return fmt.Sprintf("%s %s\n\nThat query failed: %s\nWrite a corrected query.\nSQLQuery:", previous, query, reason)
}

func answerPrompt(question, query string, result Table) string {
	rows := result.String()
	if len(result.Rows) == 0 {
		rows += "(no rows)\n"
	}
	return fmt.Sprintf(`You are a helpful librarian. Answer the question using only the SQL result below. Be concise and factual.

Question: %s
SQLQuery: %s
SQLResult:
%s
Answer:`, strings.TrimSpace(question), query, rows)
}
