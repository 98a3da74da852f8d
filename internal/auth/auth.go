// Package auth resolves the calling user for paper trading requests.
//
// Identity is pluggable: the default Static resolver maps every request to a
// single development user; Header trusts an upstream gateway that injects the
// authenticated user id.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

const (
	DefaultStaticUser = "user_1"
	DefaultHeader     = "X-User-ID"
)

// Resolver extracts a user id from a request.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// Static resolves every request to the same user.
type Static struct {
	UserID string
}

var _ Resolver = Static{}

// NewStatic returns a Static resolver; an empty id means DefaultStaticUser.
func NewStatic(userID string) Static {
	if userID == "" {
		userID = DefaultStaticUser
	}
	return Static{UserID: userID}
}

func (s Static) Resolve(*http.Request) (string, error) {
	return s.UserID, nil
}

// Header reads the user id from a request header.
type Header struct {
	Name string
}

var _ Resolver = Header{}

// NewHeader returns a Header resolver; an empty name means DefaultHeader.
func NewHeader(name string) Header {
	if name == "" {
		name = DefaultHeader
	}
	return Header{Name: name}
}

func (h Header) Resolve(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(h.Name))
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}

type ctxKey struct{}

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the user id stored by Middleware, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Middleware resolves the caller and stores the id in the request context.
// Unresolvable requests get 401.
func Middleware(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := res.Resolve(r)
			if err != nil {
				slog.Debug("request unauthenticated", "path", r.URL.Path, "err", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
		})
	}
}
