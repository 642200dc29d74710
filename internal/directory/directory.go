// Package directory implements the local demo directory used as the
// offline fallback for login and registration.
package directory

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ecolearn/ecolearn/internal/auth"
	"github.com/ecolearn/ecolearn/internal/storage"
	"github.com/google/uuid"
)

// ErrCorrupt is returned when the persisted directory cannot be decoded. The
// stored value is left untouched.
var ErrCorrupt = errors.New("local directory is not valid JSON")

// Entry is a persisted directory record. Password holds a legacy plaintext
// credential; PasswordHash an argon2id hash. Exactly one is set.
type Entry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"passwordHash,omitempty"`
	Role         string `json:"role,omitempty"`
}

// UnmarshalJSON accepts legacy entries whose id was stored as a number.
func (e *Entry) UnmarshalJSON(b []byte) error {
	type plain Entry
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*e = Entry(aux.plain)
	id, err := decodeID(aux.ID)
	if err != nil {
		return fmt.Errorf("entry id: %w", err)
	}
	e.ID = id
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// Identity returns the entry without its credential.
func (e Entry) Identity() auth.Identity {
	return auth.Identity{ID: e.ID, Name: e.Name, Email: e.Email, Role: auth.ParseRole(e.Role)}
}

func (e Entry) matches(credential string) (bool, error) {
	if e.PasswordHash != "" {
		return auth.ComparePassword(credential, e.PasswordHash)
	}
	if e.Password == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(e.Password), []byte(credential)) == 1, nil
}

type seedAccount struct {
	id, name, email, password string
	role                      auth.Role
}

var demoAccounts = []seedAccount{
	{id: "1", name: "Demo Student", email: "demo@ecolearn.com", password: "demo123", role: auth.RoleStudent},
	{id: "2", name: "John Doe", email: "john@ecolearn.com", password: "john123", role: auth.RoleStudent},
	{id: "3", name: "Jane Smith", email: "jane@ecolearn.com", password: "jane123", role: auth.RoleStudent},
	{id: "t1", name: "Teacher Admin", email: "teacher@ecolearn.com", password: "teacher123", role: auth.RoleTeacher},
	{id: "t2", name: "Mentor Teacher", email: "mentor@ecolearn.com", password: "mentor123", role: auth.RoleTeacher},
}

// requiredEmails are upserted into existing directories by Seed.
var requiredEmails = []string{"teacher@ecolearn.com", "mentor@ecolearn.com"}

type Options struct {
	// HashCredentials stores argon2id hashes for seeded and registered entries
	// instead of plaintext.
	HashCredentials bool
	// NewID synthesizes identifiers for registered entries. Defaults to uuid.NewString.
	NewID func() string
}

// Directory reads and writes the local directory stored under storage.KeyDirectory.
type Directory struct {
	store storage.Storage
	opts  Options

	mu sync.Mutex
}

func New(store storage.Storage, opts Options) *Directory {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Directory{store: store, opts: opts}
}

// Seed writes the demo accounts on first use. On later calls it defaults
// missing roles to student and adds the demo teacher accounts when their email
// is absent. It writes only when something changed and reports whether it did.
func (d *Directory) Seed(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, found, err := d.load(ctx)
	if err != nil {
		return false, err
	}

	if !found {
		entries = make([]Entry, 0, len(demoAccounts))
		for _, acct := range demoAccounts {
			entry, err := d.newEntry(acct)
			if err != nil {
				return false, err
			}
			entries = append(entries, entry)
		}
		return true, d.save(ctx, entries)
	}

	changed := false
	for i := range entries {
		if entries[i].Role == "" {
			entries[i].Role = string(auth.RoleStudent)
			changed = true
		}
	}
	for _, email := range requiredEmails {
		if indexByEmail(entries, email) >= 0 {
			continue
		}
		for _, acct := range demoAccounts {
			if acct.email != email {
				continue
			}
			entry, err := d.newEntry(acct)
			if err != nil {
				return false, err
			}
			entries = append(entries, entry)
			changed = true
		}
	}

	if !changed {
		return false, nil
	}
	return true, d.save(ctx, entries)
}

// Authenticate returns the identity whose email and credential match exactly.
func (d *Directory) Authenticate(ctx context.Context, email, credential string) (auth.Identity, error) {
	d.mu.Lock()
	entries, _, err := d.load(ctx)
	d.mu.Unlock()
	if err != nil {
		return auth.Identity{}, err
	}

	for _, e := range entries {
		if e.Email != email {
			continue
		}
		ok, err := e.matches(credential)
		if err != nil {
			return auth.Identity{}, fmt.Errorf("compare credential: %w", err)
		}
		if ok {
			return e.Identity(), nil
		}
	}
	return auth.Identity{}, auth.ErrInvalidCredentials
}

// Register appends a new student entry. It fails with auth.ErrEmailExists when
// the email is already present.
func (d *Directory) Register(ctx context.Context, name, email, credential string) (auth.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, _, err := d.load(ctx)
	if err != nil {
		return auth.Identity{}, err
	}
	if indexByEmail(entries, email) >= 0 {
		return auth.Identity{}, auth.ErrEmailExists
	}

	entry, err := d.newEntry(seedAccount{
		id:       d.opts.NewID(),
		name:     name,
		email:    email,
		password: credential,
		role:     auth.RoleStudent,
	})
	if err != nil {
		return auth.Identity{}, err
	}
	entries = append(entries, entry)
	if err := d.save(ctx, entries); err != nil {
		return auth.Identity{}, err
	}
	return entry.Identity(), nil
}

// List returns every entry as an identity, in stored order.
func (d *Directory) List(ctx context.Context) ([]auth.Identity, error) {
	d.mu.Lock()
	entries, _, err := d.load(ctx)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]auth.Identity, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Identity())
	}
	return out, nil
}

func (d *Directory) newEntry(acct seedAccount) (Entry, error) {
	entry := Entry{ID: acct.id, Name: acct.name, Email: acct.email, Role: string(acct.role)}
	if !d.opts.HashCredentials {
		entry.Password = acct.password
		return entry, nil
	}
	hash, err := auth.HashPassword(acct.password)
	if err != nil {
		return Entry{}, fmt.Errorf("hash credential: %w", err)
	}
	entry.PasswordHash = hash
	return entry, nil
}

func (d *Directory) load(ctx context.Context) ([]Entry, bool, error) {
	raw, found, err := d.store.Get(ctx, storage.KeyDirectory)
	if err != nil {
		return nil, false, fmt.Errorf("read local directory: %w", err)
	}
	// An empty value counts as absent so Seed rewrites it.
	if !found || raw == "" {
		return nil, false, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return entries, true, nil
}

func (d *Directory) save(ctx context.Context, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode local directory: %w", err)
	}
	if err := d.store.Set(ctx, storage.KeyDirectory, string(raw)); err != nil {
		return fmt.Errorf("write local directory: %w", err)
	}
	return nil
}

func indexByEmail(entries []Entry, email string) int {
	for i, e := range entries {
		if e.Email == email {
			return i
		}
	}
	return -1
}
