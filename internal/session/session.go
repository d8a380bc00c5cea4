package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName carries the session id.
	CookieName = "oncall-session"

	// KeyUser holds the authenticated user name.
	KeyUser = "user"
	// KeyAccessToken holds the SSO access token set by the auth response callback.
	KeyAccessToken = "accessToken"
	// KeySSOUser marks KeyUser as pinned by SSO rather than a local login.
	KeySSOUser = "ssoUser"

	keyPrefix   = "session:v1:"
	localsKey   = "session"
	userLocal   = "user"
	idBytes     = 32
	redisBudget = 2 * time.Second
)

// Session is the server side state attached to one browser cookie.
type Session struct {
	id       string
	oldID    string
	values   map[string]string
	fresh    bool
	modified bool
}

// New returns an unsaved session seeded with values.
func New(values map[string]string) (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Session{id: id, values: copied, fresh: true, modified: len(copied) > 0}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Fresh reports whether the session was created for this request.
func (s *Session) Fresh() bool { return s.fresh }

// Get returns the value stored under key, or "".
func (s *Session) Get(key string) string { return s.values[key] }

// Set stores value under key.
func (s *Session) Set(key, value string) {
	s.values[key] = value
	s.modified = true
}

// Delete removes key.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.modified = true
	}
}

// Regenerate issues a new id on the next Save and drops the old one.
func (s *Session) Regenerate() error {
	id, err := newID()
	if err != nil {
		return err
	}
	if s.oldID == "" && !s.fresh {
		s.oldID = s.id
	}
	s.id = id
	s.modified = true
	return nil
}

// Store keeps sessions in Redis hashes with a sliding expiry.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore builds a Redis-backed session store.
func NewStore(client *redis.Client, ttl time.Duration, secureCookie bool) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl, secure: secureCookie}
}

// Get loads the request's session, creating an unsaved one when the cookie is
// missing or points at an expired session. The result is cached on the
// request.
func (st *Store) Get(c *fiber.Ctx) (*Session, error) {
	if sess, ok := c.Locals(localsKey).(*Session); ok {
		return sess, nil
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), redisBudget)
	defer cancel()

	var sess *Session
	if id := c.Cookies(CookieName); validID(id) {
		values, err := st.client.HGetAll(ctx, keyPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if len(values) > 0 {
			sess = &Session{id: id, values: values}
			if err := st.client.Expire(ctx, keyPrefix+id, st.ttl).Err(); err != nil {
				return nil, fmt.Errorf("touch session: %w", err)
			}
		}
	}

	if sess == nil {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		sess = &Session{id: id, values: map[string]string{}, fresh: true}
	}

	c.Locals(localsKey, sess)
	return sess, nil
}

// Save persists a modified session and refreshes the cookie.
func (st *Store) Save(c *fiber.Ctx, sess *Session) error {
	if !sess.modified {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), redisBudget)
	defer cancel()

	key := keyPrefix + sess.id
	pipe := st.client.TxPipeline()
	if sess.oldID != "" {
		pipe.Del(ctx, keyPrefix+sess.oldID)
	}
	pipe.Del(ctx, key)
	if len(sess.values) > 0 {
		pairs := make([]string, 0, 2*len(sess.values))
		for k, v := range sess.values {
			pairs = append(pairs, k, v)
		}
		pipe.HSet(ctx, key, pairs)
		pipe.Expire(ctx, key, st.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	sess.oldID = ""
	sess.fresh = false
	sess.modified = false
	st.setCookie(c, sess.id, time.Now().Add(st.ttl))
	return nil
}

// Destroy removes the session from Redis and expires the cookie.
func (st *Store) Destroy(c *fiber.Ctx, sess *Session) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), redisBudget)
	defer cancel()

	if err := st.client.Del(ctx, keyPrefix+sess.id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("destroy session: %w", err)
	}
	sess.values = map[string]string{}
	sess.modified = false
	st.setCookie(c, "", time.Unix(0, 0))
	return nil
}

func (st *Store) setCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   st.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// SetUser records the authenticated user name on the request.
func SetUser(c *fiber.Ctx, name string) {
	c.Locals(userLocal, name)
}

// User returns the authenticated user name recorded on the request.
func User(c *fiber.Ctx) string {
	name, _ := c.Locals(userLocal).(string)
	return name
}

func newID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func validID(id string) bool {
	if len(id) != base64.RawURLEncoding.EncodedLen(idBytes) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(id)
	return err == nil
}
