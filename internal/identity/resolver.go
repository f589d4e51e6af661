package identity

import (
	"context"
	"errors"

	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/response"
)

// ErrUserNotFound is returned by directories for unknown users.
var ErrUserNotFound = errors.New("user not found")

// Identity is the chat view of a user, resolved per call and never stored.
type Identity struct {
	UserID      int64           `json:"user_id"`
	ScopeID     *int64          `json:"organizational_scope_id"`
	ChatRole    domain.ChatRole `json:"chat_role"`
	DisplayName string          `json:"name"`
}

// Contact is another user in the caller's scope.
type Contact struct {
	UserID      int64
	ChatRole    domain.ChatRole
	DisplayName string
}

// Resolver maps user ids to chat identities.
type Resolver struct {
	directory Directory
}

func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve fails with NotFound for unknown users and Validation for unmappable roles.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Identity, error) {
	user, err := r.directory.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, response.NewNotFoundError("User not found.")
		}
		return nil, response.NewInternalError("resolve user", err)
	}

	role, ok := user.ChatRole()
	if !ok {
		return nil, response.NewValidationError("Unsupported user role.")
	}

	return &Identity{
		UserID:      user.UserID,
		ScopeID:     user.ScopeID,
		ChatRole:    role,
		DisplayName: user.DisplayName(),
	}, nil
}

// ResolveRoles returns the chat role of every id that exists and maps to a role.
func (r *Resolver) ResolveRoles(ctx context.Context, userIDs []int64) (map[int64]domain.ChatRole, error) {
	users, err := r.directory.FindUsers(ctx, userIDs)
	if err != nil {
		return nil, response.NewInternalError("resolve roles", err)
	}

	roles := make(map[int64]domain.ChatRole, len(users))
	for _, u := range users {
		if role, ok := u.ChatRole(); ok {
			roles[u.UserID] = role
		}
	}
	return roles, nil
}

// DisplayNames returns display names for the given ids. Unknown ids are omitted.
func (r *Resolver) DisplayNames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	users, err := r.directory.FindUsers(ctx, userIDs)
	if err != nil {
		return nil, response.NewInternalError("resolve display names", err)
	}

	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[u.UserID] = u.DisplayName()
	}
	return names, nil
}

// Contacts lists the other users sharing the caller's scope whose role can be mapped.
func (r *Resolver) Contacts(ctx context.Context, self *Identity) ([]Contact, error) {
	users, err := r.directory.ListScope(ctx, self.ScopeID, self.UserID)
	if err != nil {
		return nil, response.NewInternalError("list contacts", err)
	}

	contacts := make([]Contact, 0, len(users))
	for _, u := range users {
		role, ok := u.ChatRole()
		if !ok {
			continue
		}
		contacts = append(contacts, Contact{
			UserID:      u.UserID,
			ChatRole:    role,
			DisplayName: u.DisplayName(),
		})
	}
	return contacts, nil
}
