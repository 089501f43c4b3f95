package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"
	gormLogger "gorm.io/gorm/logger"
)

func TestParamsFilterSummarizesVectors(t *testing.T) {
	t.Parallel()

	l := newTruncatingParamsLogger(gormLogger.Default).(*truncatingParamsLogger)

	vec := pgvector.NewVector([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8})
	sql, params := l.ParamsFilter(context.Background(), "INSERT INTO document_chunks", vec)
	require.Equal(t, "INSERT INTO document_chunks", sql)
	require.Len(t, params, 1)

	summary, ok := params[0].(string)
	require.True(t, ok)
	require.Contains(t, summary, "dim=8")
	require.NotContains(t, summary, "0.8")
}

func TestParamsFilterTruncatesOversizedStrings(t *testing.T) {
	t.Parallel()

	l := newTruncatingParamsLogger(gormLogger.Default).(*truncatingParamsLogger)

	long := strings.Repeat("a", maxLoggedParamLen+1)
	_, params := l.ParamsFilter(context.Background(), "SELECT 1", long, "short")
	require.Contains(t, params[0].(string), "truncated")
	require.Equal(t, "short", params[1])
}

func TestIsVectorLiteral(t *testing.T) {
	t.Parallel()

	require.True(t, isVectorLiteral("[0.1,0.2,0.3]"))
	require.False(t, isVectorLiteral("[1]"))
	require.False(t, isVectorLiteral("plain text"))
}
