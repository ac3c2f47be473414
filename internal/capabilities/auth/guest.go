package auth

import (
	"context"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/id"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
)

// Guest signs in anonymously; guest data never leaves the local tier
type Guest struct{}

func (Guest) Name() string { return "guest" }

// Authenticate returns a fresh guest identity
func (Guest) Authenticate(_ context.Context, creds Credentials) (types.Identity, error) {
	name := creds.Username
	if name == "" {
		name = "Guest"
	}
	return types.Identity{UserID: id.NewUserID(), Name: name, Guest: true}, nil
}
