package analytics

import (
	"context"
	"errors"
	"strings"
)

const BlockedMessage = "Query blocked for security reasons."

var ErrEmptyQuestion = errors.New("analytics: question is required")

// BooksScope is the only scope exposed to library users.
var BooksScope = Scope{
	Table:      "books",
	SampleRows: 2,
	Notes:      "Rows with a non-NULL deleted_at are retired and not part of the inventory; filter on deleted_at IS NULL.",
}

// AgentError wraps any failure of the agent.
type AgentError struct {
	Err error
}

func (e *AgentError) Error() string {
	return "AI failed to process query: " + e.Err.Error()
}

func (e *AgentError) Unwrap() error { return e.Err }

type Service struct {
	agent Agent
	scope Scope
}

func NewService(agent Agent) *Service {
	return &Service{agent: agent, scope: BooksScope}
}

// Answer screens question against the denylist and hands it to the agent.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if Blocked(question) {
		return "", ErrBlockedQuery
	}
	answer, err := s.agent.Answer(ctx, question, s.scope)
	if err != nil {
		return "", &AgentError{Err: err}
	}
	return answer, nil
}
