package auth

import (
	"context"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IbarraCristobal-cpu/Taiga--Masala/internal/models"
)

const (
	keyUserID = "authenticatedUserID"
	keyEmail  = "userEmail"
	keyRole   = "userRole"
)

// Sessions issues opaque bearer tokens backed by an scs session store.
type Sessions struct {
	manager *scs.SessionManager
}

func NewSessions(lifetime time.Duration) *Sessions {
	m := scs.New()
	m.Store = memstore.New()
	if lifetime > 0 {
		m.Lifetime = lifetime
	}
	return &Sessions{manager: m}
}

// Issue starts a session for id and returns its token.
func (s *Sessions) Issue(ctx context.Context, id Identity) (string, time.Time, error) {
	ctx, err := s.manager.Load(ctx, "")
	if err != nil {
		return "", time.Time{}, err
	}
	s.manager.Put(ctx, keyUserID, id.UserID.Hex())
	s.manager.Put(ctx, keyEmail, id.Email)
	s.manager.Put(ctx, keyRole, string(id.Role))
	return s.manager.Commit(ctx)
}

// Resolve returns the identity bound to token. Unknown or expired tokens
// yield the anonymous identity.
func (s *Sessions) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, nil
	}
	ctx, err := s.manager.Load(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	uid, err := primitive.ObjectIDFromHex(s.manager.GetString(ctx, keyUserID))
	if err != nil {
		return Identity{}, nil
	}
	return Identity{
		UserID: uid,
		Email:  s.manager.GetString(ctx, keyEmail),
		Role:   models.Role(s.manager.GetString(ctx, keyRole)),
	}, nil
}

// Revoke ends the session behind token.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	ctx, err := s.manager.Load(ctx, token)
	if err != nil {
		return err
	}
	return s.manager.Destroy(ctx)
}
