package domain

import (
	"time"
)

// LanguageInfo describes the language the notebook's cells are written in.
type LanguageInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	FileExtension string `json:"fileExtension"`
}

// NotebookMetadata carries document-format housekeeping.
type NotebookMetadata struct {
	FormatVersion string `json:"formatVersion"`
}

// Notebook is the document-level identity of one reactive notebook. Cell
// content and ordering live in the topology; this is what persists alongside
// them and what the index endpoint serves.
type Notebook struct {
	ID        string           `json:"uuid"`
	Title     string           `json:"title"`
	Language  LanguageInfo     `json:"languageInfo"`
	Metadata  NotebookMetadata `json:"metaData"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewNotebook creates a notebook document with a fresh id.
func NewNotebook(title string) *Notebook {
	now := time.Now()
	return &Notebook{
		ID:    NewID(),
		Title: title,
		Language: LanguageInfo{
			Name:          "python",
			FileExtension: ".py",
		},
		Metadata:  NotebookMetadata{FormatVersion: "0.0.1"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the update timestamp.
func (n *Notebook) Touch() {
	n.UpdatedAt = time.Now()
}
