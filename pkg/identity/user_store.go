package identity

// UserStore provides read access to the user table.
//
// Implementations must be safe for concurrent use; the gateway shares one
// store across all sessions.
type UserStore interface {
	// GetUser returns a user by username.
	// Returns ErrUserNotFound if the user doesn't exist.
	GetUser(username string) (*User, error)

	// ValidateCredentials verifies username/password credentials.
	// Returns ErrInvalidCredentials if the credentials are invalid.
	// Returns ErrUserDisabled if the user account is disabled.
	ValidateCredentials(username, password string) (*User, error)

	// ListUsers returns all users.
	ListUsers() ([]*User, error)
}

// ConfigUserStore implements UserStore over the immutable table built
// from configuration at startup. No locking is needed: the map is never
// mutated after construction.
type ConfigUserStore struct {
	users map[string]*User
	order []string
}

// NewConfigUserStore indexes the given users by username.
func NewConfigUserStore(users []*User) (*ConfigUserStore, error) {
	store := &ConfigUserStore{
		users: make(map[string]*User, len(users)),
	}

	for _, u := range users {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if _, exists := store.users[u.Username]; exists {
			return nil, ErrDuplicateUser
		}
		store.users[u.Username] = u
		store.order = append(store.order, u.Username)
	}

	return store, nil
}

// GetUser returns a user by username.
func (s *ConfigUserStore) GetUser(username string) (*User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ValidateCredentials verifies username/password credentials.
func (s *ConfigUserStore) ValidateCredentials(username, password string) (*User, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if !user.Enabled {
		return nil, ErrUserDisabled
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// ListUsers returns all users in configuration order.
func (s *ConfigUserStore) ListUsers() ([]*User, error) {
	users := make([]*User, 0, len(s.order))
	for _, name := range s.order {
		users = append(users, s.users[name])
	}
	return users, nil
}
