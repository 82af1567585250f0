// Package routing decides which chat rooms a project's events are
// delivered to and which webhook secret validates them.
package routing

import "fmt"

// RoomConfiguration is the per-project routing entry. Secret == ""
// means the project has no override and the global secret applies.
type RoomConfiguration struct {
	Rooms       []string
	SimpleRooms []string
	Secret      string
}

// Ref is the result of a lookup. Its slices alias the store's backing
// arrays; callers must treat it as read-only.
type Ref struct {
	Rooms       []string
	SimpleRooms []string
	Secret      string
}

// Store maps project names to room configurations. It is built once at
// startup and never mutated afterwards, so it is safe to share across
// goroutines without locking.
type Store struct {
	projects     map[string]RoomConfiguration
	defaultRooms []string // zero or one element
	globalSecret string
}

// NewStore builds a Store from already-parsed configuration.
// defaultRoom == "" means no default room. At least one of a default
// room or a project entry must be present; startup configuration that
// provides neither is rejected at the config boundary, not here.
func NewStore(defaultRoom string, projects map[string]RoomConfiguration, globalSecret string) (*Store, error) {
	if globalSecret == "" {
		return nil, fmt.Errorf("routing: global secret cannot be empty")
	}
	if defaultRoom == "" && len(projects) == 0 {
		return nil, fmt.Errorf("routing: at least one of a default room or a project configuration is required")
	}
	s := &Store{
		projects:     projects,
		globalSecret: globalSecret,
	}
	if defaultRoom != "" {
		s.defaultRooms = []string{defaultRoom}
	}
	return s, nil
}

// Resolve returns the rooms and secret for a project. It is total:
// unknown projects fall back to the default room (or no rooms) and the
// global secret. A known project with empty room lists but a secret
// override is a valid "silenced" entry; its webhook signature is still
// checked against the override.
func (s *Store) Resolve(project string) Ref {
	if cfg, ok := s.projects[project]; ok {
		secret := cfg.Secret
		if secret == "" {
			secret = s.globalSecret
		}
		return Ref{
			Rooms:       cfg.Rooms,
			SimpleRooms: cfg.SimpleRooms,
			Secret:      secret,
		}
	}
	return Ref{
		Rooms:  s.defaultRooms,
		Secret: s.globalSecret,
	}
}

// AllRooms returns the deduplicated union of every configured room,
// including the default room if set. Order is unspecified; the result
// is used only to know which rooms to join at startup.
func (s *Store) AllRooms() []string {
	seen := make(map[string]struct{})
	for _, cfg := range s.projects {
		for _, room := range cfg.Rooms {
			seen[room] = struct{}{}
		}
		for _, room := range cfg.SimpleRooms {
			seen[room] = struct{}{}
		}
	}
	for _, room := range s.defaultRooms {
		seen[room] = struct{}{}
	}
	rooms := make([]string, 0, len(seen))
	for room := range seen {
		rooms = append(rooms, room)
	}
	return rooms
}
