package shared

import (
	"context"

	"github.com/covenant-cm/covenant/internal/authz"
)

type subjectContextKey struct{}

// ContextWithSubject stores the authenticated subject in context.
func ContextWithSubject(ctx context.Context, sub *authz.Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, sub)
}

// SubjectFromContext extracts the subject from context, nil when absent.
func SubjectFromContext(ctx context.Context) *authz.Subject {
	sub, _ := ctx.Value(subjectContextKey{}).(*authz.Subject)
	return sub
}
