package utils

import (
	"context"
	"errors"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is who a verified session token says the caller is.
type Identity struct {
	UserID   uint
	Email    string
	FullName string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}, errors.New("identity not found in context")
	}
	return id, nil
}

func GetUserIDFromContext(ctx context.Context) (uint, error) {
	id, err := IdentityFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return id.UserID, nil
}
