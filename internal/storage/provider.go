// Package storage keeps JIIX documents in a drop directory.
package storage

import "github.com/starford/inkmath/internal/models"

// Ext is the extension of stored documents.
const Ext = ".json"

// Provider is the interface for document file operations. Paths are
// relative to the provider root.
type Provider interface {
	// List returns metadata for every document under dir.
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of a document.
	Read(path string) ([]byte, error)
	// Write atomically replaces a document.
	Write(path string, content []byte) error
	// Delete removes a document.
	Delete(path string) error
}

// IsDocument reports whether name has the document extension and is not a
// temporary file.
func IsDocument(name string) bool {
	return len(name) > len(Ext) && name[len(name)-len(Ext):] == Ext && name[0] != '.'
}
