package utils

import (
	"context"
)

type contextKey string

const ContextRequestIDKey contextKey = "requestID"

func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id := ctx.Value(ContextRequestIDKey)
	idStr, ok := id.(string)
	return idStr, ok
}
