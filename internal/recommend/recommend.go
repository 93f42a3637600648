// Package recommend suggests books from the current inventory with a chat
// model.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"smartlibrary/internal/catalog"
	"smartlibrary/internal/llm"
)

// Temperature is the sampling temperature for recommendations.
const Temperature = 0.7

const EmptyLibraryMessage = "Our library is currently empty. Please check back later!"

// BookLister reads the inventory.
type BookLister interface {
	List(ctx context.Context, filter string) ([]catalog.Book, error)
}

type Service struct {
	books BookLister
	llm   llm.Completer
}

func NewService(books BookLister, completer llm.Completer) *Service {
	return &Service{books: books, llm: completer}
}

// Recommend answers query with books from the inventory only. A model
// failure is returned as the reply text; only storage failures are errors.
func (s *Service) Recommend(ctx context.Context, query string) (string, error) {
	books, err := s.books.List(ctx, "")
	if err != nil {
		return "", fmt.Errorf("recommend: read inventory: %w", err)
	}
	if len(books) == 0 {
		return EmptyLibraryMessage, nil
	}

	reply, err := s.llm.Complete(ctx, BuildPrompt(books, query))
	if err != nil {
		return fmt.Sprintf("Recommendation service unavailable. Error: %v", err), nil
	}
	return reply, nil
}

// BuildPrompt renders the librarian prompt for books and query.
func BuildPrompt(books []catalog.Book, query string) string {
	var list strings.Builder
	for i, b := range books {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "- %s by %s (%s)", b.Title, b.Author, b.Genre)
	}

	return fmt.Sprintf(`You are a helpful librarian assistant. Recommend books ONLY from our current inventory:

**Available Books:**
%s

**User Request:** %s

**Rules:**
1. Only suggest books that match the user's request
2. If no matches exist, suggest similar genres
3. Never invent books not in our inventory
4. Mention specific titles and authors
5. Keep response under 3 sentences`, list.String(), strings.TrimSpace(query))
}
