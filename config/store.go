package config

import (
	"path/filepath"
)

// DocDir is the directory, relative to the server root, holding the documents
const DocDir = "json"

// NewStore returns a store reading the documents under root
func NewStore(root string) *Store {
	if root == "" {
		root = "."
	}
	return &Store{root: root}
}

// Store locates the configuration documents of a server root and loads them
type Store struct {
	root string
}

// Root returns the server root directory
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding the documents
func (s *Store) Dir() string {
	return filepath.Join(s.root, DocDir)
}

// Path returns the document path for kind k
func (s *Store) Path(k Kind) string {
	return filepath.Join(s.Dir(), string(k)+".json")
}

// Resolve returns p relative to the server root.
// Leading slashes are kept relative to the root, as in "/css/site.css".
func (s *Store) Resolve(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

// Content loads the content document
func (s *Store) Content() (Content, error) {
	return Load[Content](s.Path(KindContent))
}

// App loads the app document
func (s *Store) App() (App, error) {
	return Load[App](s.Path(KindApp))
}

// Server loads the server document
func (s *Store) Server() (Server, error) {
	return Load[Server](s.Path(KindServer))
}

// TLS loads the tls document
func (s *Store) TLS() (TLS, error) {
	return Load[TLS](s.Path(KindTLS))
}
