package auth

import (
	"context"

	"github.com/mrlokans/coursemarket/internal/entities"
)

// Actor is the signed-in user on whose behalf a service call runs. Services
// receive it as an explicit argument.
type Actor struct {
	UserID uint
	Name   string
	Email  string
	Role   entities.UserRole
}

func ActorFromUser(u *entities.User) Actor {
	return Actor{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (a Actor) IsZero() bool  { return a.UserID == 0 }
func (a Actor) IsAdmin() bool { return a.Role == entities.UserRoleAdmin }

type actorKey struct{}

// WithActor returns a copy of ctx carrying the actor.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && !a.IsZero()
}
