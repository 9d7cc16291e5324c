// Package registry tracks participant roles. Accounts self-register as
// users; a single administrator promotes accounts to artists and can demote
// them again. The ticket ledger consults the registry to authorize minting.
package registry

import (
	"context"
	"sync"

	"github.com/pflow-xyz/go-ticketry/account"
	"github.com/pflow-xyz/go-ticketry/eventsource"
)

// Role is a participant's registered role.
type Role uint8

const (
	// RoleUser is the default role for every account, registered or not.
	RoleUser Role = iota

	// RoleArtist marks an account allowed to mint tickets.
	RoleArtist
)

func (r Role) String() string {
	switch r {
	case RoleArtist:
		return "artist"
	default:
		return "user"
	}
}

// Profile is the registered state of one account. The zero value is the
// profile of an unknown account: an unregistered user.
type Profile struct {
	Role       Role `json:"role"`
	Registered bool `json:"registered"`
}

// Event types recorded by the registry.
const (
	EventUserRegistered   = "UserRegistered"
	EventArtistRegistered = "ArtistRegistered"
	EventArtistRemoved    = "ArtistRemoved"
)

// RegistrationData is the payload of registration and removal events.
type RegistrationData struct {
	Account account.Address `json:"account"`
	Role    string          `json:"role"`
}

// Registry holds role state. All mutating operations are serialized by an
// internal mutex; queries take a read lock and never observe a half-applied
// mutation.
type Registry struct {
	mu       sync.RWMutex
	admin    account.Address
	profiles map[account.Address]Profile
	artists  []account.Address
	journal  *eventsource.Journal
}

// StreamID is the registry's event stream.
const StreamID = "registry"

// New creates a registry administered by admin, journaling to the given
// event store.
func New(admin account.Address, store eventsource.Store) *Registry {
	return &Registry{
		admin:    admin,
		profiles: make(map[account.Address]Profile),
		journal:  eventsource.NewJournal(store, StreamID),
	}
}

// Load creates a registry and rebuilds its state by replaying the registry
// stream from the store. Use it to recover after a restart; on a fresh
// store it is equivalent to New.
func Load(ctx context.Context, admin account.Address, store eventsource.Store) (*Registry, error) {
	r := New(admin, store)

	_, err := eventsource.Replay(ctx, store, StreamID, func(e *eventsource.Event) error {
		var data RegistrationData
		if err := e.Decode(&data); err != nil {
			return err
		}
		switch e.Type {
		case EventUserRegistered:
			r.profiles[data.Account] = Profile{Role: RoleUser, Registered: true}
		case EventArtistRegistered:
			r.profiles[data.Account] = Profile{Role: RoleArtist, Registered: true}
			r.artists = append(r.artists, data.Account)
		case EventArtistRemoved:
			r.profiles[data.Account] = Profile{Role: RoleUser, Registered: true}
			for i, a := range r.artists {
				if a == data.Account {
					r.artists = append(r.artists[:i], r.artists[i+1:]...)
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Admin returns the administrator identity.
func (r *Registry) Admin() account.Address {
	return r.admin
}

// RegisterUser self-registers the caller as a user.
func (r *Registry) RegisterUser(ctx context.Context, caller account.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.profiles[caller].Registered {
		return ErrAlreadyRegistered
	}

	if _, err := r.journal.Record(ctx, EventUserRegistered, RegistrationData{
		Account: caller,
		Role:    RoleUser.String(),
	}); err != nil {
		return err
	}

	r.profiles[caller] = Profile{Role: RoleUser, Registered: true}
	return nil
}

// RegisterArtist promotes target to artist. Only the administrator may call
// it. Promoting an existing artist is a no-op: the profile is unchanged and
// the artist index gains no duplicate.
func (r *Registry) RegisterArtist(ctx context.Context, caller, target account.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return ErrUnauthorized
	}

	if r.profiles[target].Role == RoleArtist {
		return nil
	}

	if _, err := r.journal.Record(ctx, EventArtistRegistered, RegistrationData{
		Account: target,
		Role:    RoleArtist.String(),
	}); err != nil {
		return err
	}

	r.profiles[target] = Profile{Role: RoleArtist, Registered: true}
	r.artists = append(r.artists, target)
	return nil
}

// RemoveArtist demotes target back to user. Only the administrator may call
// it. The account stays registered; demoting a non-artist is a no-op.
func (r *Registry) RemoveArtist(ctx context.Context, caller, target account.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return ErrUnauthorized
	}

	if r.profiles[target].Role != RoleArtist {
		return nil
	}

	if _, err := r.journal.Record(ctx, EventArtistRemoved, RegistrationData{
		Account: target,
		Role:    RoleUser.String(),
	}); err != nil {
		return err
	}

	r.profiles[target] = Profile{Role: RoleUser, Registered: true}
	for i, a := range r.artists {
		if a == target {
			r.artists = append(r.artists[:i], r.artists[i+1:]...)
			break
		}
	}
	return nil
}

// IsRegistered reports whether the account has ever registered.
func (r *Registry) IsRegistered(a account.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[a].Registered
}

// IsArtist reports whether the account currently holds the artist role.
func (r *Registry) IsArtist(a account.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[a].Role == RoleArtist
}

// Profile returns the account's profile. Unknown accounts yield the default
// unregistered-user profile.
func (r *Registry) Profile(a account.Address) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[a]
}

// Artists returns all current artists in registration order.
func (r *Registry) Artists() []account.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]account.Address, len(r.artists))
	copy(out, r.artists)
	return out
}

// ArtistCount returns the number of current artists.
func (r *Registry) ArtistCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artists)
}

// Events returns the registry's event history.
func (r *Registry) Events(ctx context.Context) ([]*eventsource.Event, error) {
	return r.journal.Events(ctx)
}
