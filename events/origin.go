package events

import "context"

type originKey struct{}

// WithRemoteOrigin marks a context as carrying an event received from another process
func WithRemoteOrigin(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, originKey{}, source)
}

// RemoteOrigin returns the source process of a remotely received event
func RemoteOrigin(ctx context.Context) (string, bool) {
	source, ok := ctx.Value(originKey{}).(string)
	return source, ok
}
