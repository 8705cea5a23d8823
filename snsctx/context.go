// Package snsctx carries per-call flags through context.Context.
package snsctx

import "context"

type ctxKey int

const verboseKey ctxKey = iota

// IsVerbose reports whether bus frames should be traced for this call.
func IsVerbose(ctx context.Context) bool {
	verbose, _ := ctx.Value(verboseKey).(bool)
	return verbose
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, verboseKey, value)
}
