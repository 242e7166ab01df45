package auth

import "context"

type contextKey string

const contextKeySession contextKey = "auth.session"

// Session is the verified identity of a request.
type Session struct {
	Subject string
	Email   string
	Role    Role
}

// WithSession stores a session in context.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, contextKeySession, session)
}

// SessionFromContext returns the session of a request, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	session, ok := ctx.Value(contextKeySession).(Session)
	return session, ok
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	session, _ := SessionFromContext(ctx)
	return session.Role
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	session, _ := SessionFromContext(ctx)
	return session.Subject
}
