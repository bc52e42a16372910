package indexsync

import (
	"fmt"
	"strings"
)

// maxAuthorsLen bounds the author list in a chunk signature so a
// pathological metadata row cannot crowd out the chunk text.
const maxAuthorsLen = 500

// authorsLabel renders an author list for the chunk signature.
func authorsLabel(authors []string) string {
	if len(authors) == 0 {
		return "n/a"
	}
	label := strings.Join(authors, ", ")
	if len(label) > maxAuthorsLen {
		label = label[:maxAuthorsLen]
	}
	return label
}

// chunkSignature builds the document signature prefixed to every chunk
// before embedding, so a chunk carries its provenance into the vector
// space even when the chunk text itself never mentions the title.
func chunkSignature(title string, authors []string) string {
	return fmt.Sprintf("Title: %s; Author(s): %s.", title, authorsLabel(authors))
}

// signedText prefixes chunk text with the document signature.
func signedText(signature, text string) string {
	return fmt.Sprintf("###%s###\n%s", signature, text)
}
