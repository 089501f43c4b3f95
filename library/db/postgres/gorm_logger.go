package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	gormLogger "gorm.io/gorm/logger"
)

const (
	maxLoggedParamLen = 200
	vectorPreviewDims = 6
)

// truncatingParamsLogger keeps embedding literals out of SQL logs. A single
// chunk insert carries a vector with hundreds of dimensions, which would
// otherwise dominate every logged statement.
type truncatingParamsLogger struct {
	gormLogger.Interface
}

func newTruncatingParamsLogger(base gormLogger.Interface) gormLogger.Interface {
	return &truncatingParamsLogger{Interface: base}
}

// ParamsFilter replaces vector-like and oversized parameters with compact summaries.
func (l *truncatingParamsLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if len(params) == 0 {
		return sql, params
	}

	filtered := make([]any, len(params))
	for idx, param := range params {
		filtered[idx] = summarizeParam(param)
	}

	return sql, filtered
}

func summarizeParam(param any) any {
	switch value := param.(type) {
	case pgvector.Vector:
		return summarizeVector(value.Slice())
	case string:
		if isVectorLiteral(value) || len(value) > maxLoggedParamLen {
			return fmt.Sprintf("<string:len=%d,truncated>", len(value))
		}
		return value
	case []byte:
		if len(value) > maxLoggedParamLen {
			return fmt.Sprintf("<bytes:len=%d,truncated>", len(value))
		}
		return value
	default:
		return param
	}
}

func summarizeVector(vector []float32) string {
	preview := vector
	if len(preview) > vectorPreviewDims {
		preview = preview[:vectorPreviewDims]
	}
	return fmt.Sprintf("<vector:dim=%d,preview=%v>", len(vector), preview)
}

// isVectorLiteral checks whether a SQL parameter string resembles a pgvector literal.
func isVectorLiteral(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 4 {
		return false
	}
	return strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") && strings.Contains(trimmed, ",")
}
