package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docqa/internal/domain"
)

// loadDocuments expands globs and reads every .txt file into an unprocessed
// document with a fresh id. Empty files are skipped.
func loadDocuments(paths []string) ([]domain.Document, error) {
	var documents []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			doc, err := domain.NewDocument(filepath.Base(m), string(data))
			if err != nil {
				continue
			}
			documents = append(documents, doc)
		}
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("no non-empty .txt documents found")
	}
	return documents, nil
}
