package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/papyr-app/papyr-api/internal/catalog"
	"github.com/papyr-app/papyr-api/internal/ingest"
	"github.com/papyr-app/papyr-api/internal/library/llm"
)

func TestBuildSystemInstructionWithBookMetadata(t *testing.T) {
	t.Parallel()

	doc := &ingest.UploadedDocument{Title: "upload.pdf"}
	book := &catalog.Book{
		Title:         "The Dispossessed",
		Author:        "Ursula K. Le Guin",
		Description:   "An ambiguous utopia.",
		PublishedYear: 1974,
		Genres:        datatypes.JSONSlice[string]{"science fiction", "utopian"},
	}

	got := buildSystemInstruction(doc, book, "English")

	require.Contains(t, got, `"The Dispossessed"`)
	require.Contains(t, got, "Ursula K. Le Guin")
	require.Contains(t, got, "1974")
	require.Contains(t, got, "science fiction, utopian")
	require.Contains(t, got, "An ambiguous utopia.")
	require.Contains(t, got, "Respond in English.")
	require.Contains(t, got, RefusalSentence)
	require.NotContains(t, got, "upload.pdf")
}

func TestBuildSystemInstructionFallsBackToUploadTitle(t *testing.T) {
	t.Parallel()

	doc := &ingest.UploadedDocument{Title: "field notes.pdf"}

	got := buildSystemInstruction(doc, nil, "French")

	require.Contains(t, got, `"field notes.pdf"`)
	require.Contains(t, got, "Respond in French.")
	require.Contains(t, got, RefusalSentence)
	require.NotContains(t, got, "Author:")
}

func TestProviderRoleIsTotal(t *testing.T) {
	t.Parallel()

	require.Equal(t, llm.RoleUser, providerRole(RoleUser))
	require.Equal(t, llm.RoleAssistant, providerRole(RoleAssistant))
	require.Equal(t, llm.RoleUser, providerRole(MessageRole("moderator")))
	require.Equal(t, llm.RoleUser, providerRole(MessageRole("")))
}
