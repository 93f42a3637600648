package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Dialect() string { return "sqlite" }

func (m *mockSource) TableInfo(ctx context.Context, table string, sampleRows int) (TableInfo, error) {
	args := m.Called(ctx, table, sampleRows)
	return args.Get(0).(TableInfo), args.Error(1)
}

func (m *mockSource) QueryReadOnly(ctx context.Context, query string, maxRows int) (Table, error) {
	args := m.Called(ctx, query, maxRows)
	return args.Get(0).(Table), args.Error(1)
}

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func promptHas(substr string) any {
	return mock.MatchedBy(func(p string) bool { return strings.Contains(p, substr) })
}

var booksInfo = TableInfo{
	Name: "books",
	Columns: []Column{
		{Name: "id", Type: "INTEGER"}, {Name: "title", Type: "TEXT"}, {Name: "genre", Type: "TEXT"}, {Name: "stock", Type: "INTEGER"},
	},
	Sample: Table{
		Columns: []string{"id", "title", "genre", "stock"},
		Rows:    [][]string{{"1", "The Great Gatsby", "Classic", "5"}, {"2", "1984", "Dystopian", "3"}},
	},
}

func TestSQLAgent_Answer(t *testing.T) {
	ctx := context.Background()
	src := new(mockSource)
	llm := new(mockCompleter)
	src.On("TableInfo", ctx, "books", 2).Return(booksInfo, nil)

	llm.On("Complete", ctx, promptHas("Question: fantasy books with more than 2 copies")).
		Return("```sql\nSELECT title FROM books WHERE genre = 'Fantasy' AND stock > 2;\n```", nil).Once()
	src.On("QueryReadOnly", ctx, "SELECT title FROM books WHERE genre = 'Fantasy' AND stock > 2;", MaxResultRows).
		Return(Table{Columns: []string{"title"}}, nil)
	llm.On("Complete", ctx, promptHas("(no rows)")).
		Return("There are no fantasy books with more than 2 copies.", nil).Once()

	got, err := NewSQLAgent(src, llm).Answer(ctx, "fantasy books with more than 2 copies", Scope{Table: "books", SampleRows: 2})

	require.NoError(t, err)
	assert.Equal(t, "There are no fantasy books with more than 2 copies.", got)
	src.AssertExpectations(t)
	llm.AssertExpectations(t)
}

func TestSQLAgent_PromptCarriesSchema(t *testing.T) {
	prompt := queryPrompt("sqlite", booksInfo, "retired rows have deleted_at set", "how many books?")

	assert.Contains(t, prompt, "CREATE TABLE books (")
	assert.Contains(t, prompt, "2 rows from books table:")
	assert.Contains(t, prompt, "The Great Gatsby")
	assert.Contains(t, prompt, "Notes: retired rows have deleted_at set")
	assert.True(t, strings.HasSuffix(prompt, "Question: how many books?\nSQLQuery:"))
}

func TestSQLAgent_CorrectsRejectedQueryOnce(t *testing.T) {
	ctx := context.Background()
	src := new(mockSource)
	llm := new(mockCompleter)
	src.On("TableInfo", ctx, "books", 2).Return(booksInfo, nil)

	llm.On("Complete", ctx, mock.MatchedBy(func(p string) bool { return !strings.Contains(p, "That query failed") })).
		Return("SELECT * FROM borrowed", nil).Once()
	llm.On("Complete", ctx, promptHas("table borrowed is out of scope")).
		Return("SELECT COUNT(*) FROM books", nil).Once()
	src.On("QueryReadOnly", ctx, "SELECT COUNT(*) FROM books", MaxResultRows).
		Return(Table{Columns: []string{"COUNT(*)"}, Rows: [][]string{{"4"}}}, nil)
	llm.On("Complete", ctx, promptHas("SQLResult:")).Return("The library has 4 books.", nil).Once()

	got, err := NewSQLAgent(src, llm).Answer(ctx, "how many borrowers?", Scope{Table: "books", SampleRows: 2})

	require.NoError(t, err)
	assert.Equal(t, "The library has 4 books.", got)
	src.AssertNumberOfCalls(t, "QueryReadOnly", 1)
}

func TestSQLAgent_GivesUpAfterCorrection(t *testing.T) {
	ctx := context.Background()
	src := new(mockSource)
	llm := new(mockCompleter)
	src.On("TableInfo", ctx, "books", 2).Return(booksInfo, nil)
	llm.On("Complete", ctx, mock.Anything).Return("SELECT titel FROM books", nil).Twice()
	src.On("QueryReadOnly", ctx, "SELECT titel FROM books", MaxResultRows).
		Return(Table{}, errors.New("no such column: titel")).Twice()

	_, err := NewSQLAgent(src, llm).Answer(ctx, "list titles", Scope{Table: "books", SampleRows: 2})

	assert.ErrorContains(t, err, "no such column: titel")
	llm.AssertNumberOfCalls(t, "Complete", 2)
}

func TestSQLAgent_NoQuery(t *testing.T) {
	ctx := context.Background()
	src := new(mockSource)
	llm := new(mockCompleter)
	src.On("TableInfo", ctx, "books", 2).Return(booksInfo, nil)
	llm.On("Complete", ctx, mock.Anything).Return("NO_QUERY", nil).Once()

	got, err := NewSQLAgent(src, llm).Answer(ctx, "what is the weather?", Scope{Table: "books", SampleRows: 2})

	require.NoError(t, err)
	assert.Equal(t, NoAnswerMessage, got)
	src.AssertNotCalled(t, "QueryReadOnly", mock.Anything, mock.Anything, mock.Anything)
}

func TestSQLAgent_ModelFailure(t *testing.T) {
	ctx := context.Background()
	src := new(mockSource)
	llm := new(mockCompleter)
	src.On("TableInfo", ctx, "books", 2).Return(booksInfo, nil)
	llm.On("Complete", ctx, mock.Anything).Return("", errors.New("rate limited"))

	_, err := NewSQLAgent(src, llm).Answer(ctx, "list titles", Scope{Table: "books", SampleRows: 2})

	assert.ErrorContains(t, err, "rate limited")
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		reply string
		want  string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT title FROM books\n```", "SELECT title FROM books"},
		{"Here you go:\n```\nSELECT title FROM books\n```\nHope it helps", "SELECT title FROM books"},
		{"SQLQuery: SELECT title FROM books", "SELECT title FROM books"},
		{"  NO_QUERY \n", "NO_QUERY"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractSQL(tt.reply))
	}
}
