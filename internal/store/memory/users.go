package memory

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/conduit-hq/conduit/internal/model"
	"github.com/conduit-hq/conduit/internal/store"
)

// UserStore keeps all users in memory, keyed by user id. Username and
// email uniqueness is enforced on creation only; Update deliberately
// skips the re-check to preserve the observable behavior of the system
// this replaces (see DESIGN.md).
type UserStore struct {
	mu    sync.Mutex
	users map[model.UserID]model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[model.UserID]model.User)}
}

// Create registers a new user. It fails with ErrDuplicateUser when the
// username or the email is already taken (case-sensitive exact match).
func (s *UserStore) Create(username, email, password string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return model.User{}, store.ErrDuplicateUser
		}
	}

	salt := newSalt()
	user := model.User{
		ID:             s.newUserID(),
		Username:       username,
		Email:          email,
		Salt:           salt,
		HashedPassword: hashPassword(password, salt),
		Following:      make(map[model.UserID]struct{}),
	}
	s.users[user.ID] = user
	return user.Clone(), nil
}

// Login recomputes the salted digest with the stored salt and succeeds
// only on an exact match.
func (s *UserStore) Login(email, password string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail(email)
	if !ok {
		return model.User{}, store.ErrLoginFailed
	}
	if u.HashedPassword != hashPassword(password, u.Salt) {
		return model.User{}, store.ErrLoginFailed
	}
	return u.Clone(), nil
}

func (s *UserStore) GetByEmail(email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail(email)
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *UserStore) GetByUsername(username string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return model.User{}, store.ErrNotFound
}

func (s *UserStore) GetByID(id model.UserID) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u.Clone(), nil
}

// Update applies the non-nil fields of upd to the user identified by
// email and swaps the rebuilt value into the store. A new password gets
// a fresh salt and a rehash.
func (s *UserStore) Update(email string, upd store.UserUpdate) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byEmail(email)
	if !ok {
		return model.User{}, store.ErrNotFound
	}

	u := cur.Clone()
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Password != nil {
		u.Salt = newSalt()
		u.HashedPassword = hashPassword(*upd.Password, u.Salt)
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.Image != nil {
		u.Image = *upd.Image
	}
	s.users[u.ID] = u
	return u.Clone(), nil
}

// Follow adds target to the follower's follow set. Following an already
// followed user is a no-op that still succeeds. Nothing prevents a user
// from following itself.
func (s *UserStore) Follow(followerEmail string, target model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail(followerEmail)
	if !ok {
		return store.ErrNotFound
	}
	u.Following[target] = struct{}{}
	return nil
}

// Unfollow removes target from the follower's follow set. Unfollowing a
// user that was never followed succeeds.
func (s *UserStore) Unfollow(followerEmail string, target model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail(followerEmail)
	if !ok {
		return store.ErrNotFound
	}
	delete(u.Following, target)
	return nil
}

// byEmail must be called with the lock held. Lookups are linear scans;
// fine at in-memory scale.
func (s *UserStore) byEmail(email string) (model.User, bool) {
	for _, u := range s.users {
		if u.Email == email {
			return u, true
		}
	}
	return model.User{}, false
}

// newUserID retries until the generated id is unused. Must be called
// with the lock held.
func (s *UserStore) newUserID() model.UserID {
	for {
		id := uuid.New()
		if _, taken := s.users[id]; !taken {
			return id
		}
	}
}

func newSalt() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return int64(binary.BigEndian.Uint64(b[:]))
}

// hashPassword digests the decimal salt bytes followed by the password
// bytes. SHA3-512 is a fast digest, not a password KDF; the contract
// (salt + fixed-length digest, compare on login) is kept so a
// production build can swap in a slow hash without touching callers.
func hashPassword(password string, salt int64) string {
	h := sha3.New512()
	h.Write([]byte(strconv.FormatInt(salt, 10)))
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}
