package chat

import (
	"fmt"
	"strings"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/internal/library/llm"
)

// RefusalSentence is the exact sentence the assistant must reply with
// when a question falls outside the scope of the current book.
const RefusalSentence = "I can only answer questions about this book."

// buildSystemInstruction assembles the system prompt that anchors the
// assistant to one book. Metadata comes from the catalog when the
// uploaded document is linked to a book, otherwise the document title
// is all we have.
func buildSystemInstruction(doc *ingest.UploadedDocument, book *catalog.Book, language string) string {
	var b strings.Builder

	title := doc.Title
	if book != nil && book.Title != "" {
		title = book.Title
	}

	b.WriteString(fmt.Sprintf("You are a reading companion for the book %q.", title))
	b.WriteString(" Answer questions about this book and nothing else.\n")

	if book != nil {
		if book.Author != "" {
			b.WriteString(fmt.Sprintf("Author: %s\n", book.Author))
		}
		if book.PublishedYear != 0 {
			b.WriteString(fmt.Sprintf("Published: %d\n", book.PublishedYear))
		}
		if len(book.Genres) > 0 {
			b.WriteString(fmt.Sprintf("Genres: %s\n", strings.Join(book.Genres, ", ")))
		}
		if book.Description != "" {
			b.WriteString(fmt.Sprintf("Description: %s\n", book.Description))
		}
	}

	b.WriteString(fmt.Sprintf("Respond in %s.\n", language))
	b.WriteString(fmt.Sprintf(
		"If the question is not about this book, reply with exactly: %s",
		RefusalSentence))

	return b.String()
}

// providerRole maps a stored conversation role onto the provider wire
// role. Unknown roles degrade to the user role rather than failing.
func providerRole(role MessageRole) string {
	switch role {
	case RoleAssistant:
		return llm.RoleAssistant
	case RoleUser:
		return llm.RoleUser
	default:
		return llm.RoleUser
	}
}
