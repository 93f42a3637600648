// Package seed loads a starter catalog into an empty library.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"smartlibrary/internal/catalog"
)

//go:embed books.yaml
var defaultBooks []byte

type file struct {
	Books []entry `yaml:"books"`
}

type entry struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	Genre  string `yaml:"genre"`
	ISBN   string `yaml:"isbn"`
	Stock  *int   `yaml:"stock"`
}

// Adder inserts one book.
type Adder interface {
	Add(ctx context.Context, nb catalog.NewBook) (catalog.Book, error)
}

// Result counts what Apply did.
type Result struct {
	Added   int
	Skipped int
}

// Default returns the built-in sample books.
func Default() ([]catalog.NewBook, error) {
	return Load(bytes.NewReader(defaultBooks))
}

// LoadFile reads books from a YAML file.
func LoadFile(path string) ([]catalog.NewBook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML document with a top-level "books" list. Stock defaults
// to 1.
func Load(r io.Reader) ([]catalog.NewBook, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc file
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}

	books := make([]catalog.NewBook, 0, len(doc.Books))
	for _, e := range doc.Books {
		stock := 1
		if e.Stock != nil {
			stock = *e.Stock
		}
		books = append(books, catalog.NewBook{
			Title:  e.Title,
			Author: e.Author,
			Genre:  e.Genre,
			ISBN:   e.ISBN,
			Stock:  stock,
		})
	}
	return books, nil
}

// Apply adds every book, skipping ones whose ISBN is already on the shelf.
func Apply(ctx context.Context, adder Adder, books []catalog.NewBook) (Result, error) {
	var res Result
	for _, nb := range books {
		_, err := adder.Add(ctx, nb)
		switch {
		case err == nil:
			res.Added++
		case errors.Is(err, catalog.ErrDuplicateISBN):
			res.Skipped++
		default:
			return res, fmt.Errorf("seed: add %q: %w", nb.Title, err)
		}
	}
	return res, nil
}
