// Package idgen generates record identifiers for the development backend:
// a short resource prefix followed by a nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is used for resources without an entry in Prefixes.
var DefaultPrefix = "rec-"

// Prefixes maps resource names to their identifier prefix.
var Prefixes = map[string]string{
	"feedback":  "fb-",
	"contacts":  "ct-",
	"documents": "doc-",
	"tickets":   "tk-",
}

// Alphabet is lowercase alphanumeric so identifiers survive case-folding
// search and URL paths unchanged.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// ForResource returns a new ID carrying the resource's prefix.
func ForResource(resource string) (string, error) {
	prefix, ok := Prefixes[resource]
	if !ok {
		prefix = DefaultPrefix
	}
	return GenerateWithPrefix(prefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
