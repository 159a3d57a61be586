// Package directory talks to the member directory over LDAP: an admin bind
// for searches, a second independent bind to prove a user's password, and a
// group membership lookup. Every blocking operation is bounded by the
// configured operation timeout and every connection is unbound on all paths.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/sirupsen/logrus"

	"github.com/GoliathLabs/applica/internal/config"
	"github.com/GoliathLabs/applica/internal/logging"
)

const (
	attrUID       = "uid"
	attrCN        = "cn"
	attrMemberUID = "memberUid"

	defaultOpTimeout = 5 * time.Second
)

// User is a directory entry returned by FindUserByName.
type User struct {
	DN         string
	CommonName string
	UID        string
}

// Session is an admin-bound connection. It is owned by one authentication
// attempt and must be handed back through Client.Release.
type Session struct {
	conn     Conn
	once     sync.Once
	released bool
	mu       sync.Mutex
}

func newSession(conn Conn) *Session {
	return &Session{conn: conn}
}

func (s *Session) active() (Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrSessionReleased
	}
	return s.conn, nil
}

// Client performs directory operations against one configured directory.
type Client struct {
	dialer        Dialer
	adminDN       string
	adminPassword string
	peopleDN      string
	timeout       time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithDialer replaces the connection factory (tests use an in-memory directory).
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// NewClient builds a client from the directory configuration.
func NewClient(cfg config.LDAPConfig, opts ...Option) *Client {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	c := &Client{
		dialer:        URLDialer{URL: cfg.URL, Timeout: timeout},
		adminDN:       cfg.AdminDN,
		adminPassword: cfg.AdminPassword,
		peopleDN:      cfg.PeopleDN(),
		timeout:       timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BindAsAdmin opens a connection and binds with the administrative identity.
// Any failure, including a bind that outlives the operation timeout, closes
// the partial connection and yields ErrUnavailable.
func (c *Client) BindAsAdmin(ctx context.Context) (*Session, error) {
	log := logging.FromContext(ctx).WithField(logging.FieldComponent, "directory")

	conn, err := c.dial(ctx)
	if err != nil {
		log.WithError(err).Error("directory dial failed")
		return nil, ErrUnavailable
	}

	sess := newSession(conn)
	err = c.run(ctx, "admin bind", func() error {
		return conn.Bind(c.adminDN, c.adminPassword)
	})
	if err != nil {
		c.Release(ctx, sess)
		log.WithError(err).Error("directory admin bind failed")
		return nil, ErrUnavailable
	}
	return sess, nil
}

// FindUserByName searches the people container for an exact uid match.
// It returns (nil, nil) when no entry matches. Entries are assumed unique per
// uid; when the directory returns several, the first one wins.
func (c *Client) FindUserByName(ctx context.Context, s *Session, username string) (*User, error) {
	conn, err := s.active()
	if err != nil {
		return nil, err
	}

	req := ldap.NewSearchRequest(
		c.peopleDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(%s=%s)", attrUID, ldap.EscapeFilter(username)),
		[]string{"dn", attrCN, attrUID},
		nil,
	)

	var res *ldap.SearchResult
	err = c.run(ctx, "user search", func() error {
		var searchErr error
		res, searchErr = conn.Search(req)
		return searchErr
	})
	if err != nil {
		return nil, fmt.Errorf("search user: %w", err)
	}
	if res == nil || len(res.Entries) == 0 {
		return nil, nil
	}
	if len(res.Entries) > 1 {
		logging.FromContext(ctx).WithFields(logrus.Fields{
			logging.FieldComponent: "directory",
			"matches":              len(res.Entries),
		}).Warn("username matched several directory entries, using the first")
	}

	entry := res.Entries[0]
	return &User{
		DN:         entry.DN,
		CommonName: entry.GetAttributeValue(attrCN),
		UID:        entry.GetAttributeValue(attrUID),
	}, nil
}

// VerifyPassword proves password ownership by binding as userDN on a second,
// independent connection, which is unbound before returning. It returns
// (false, nil) for rejected credentials and (false, err) for directory
// failures. An empty password is refused without contacting the directory,
// since LDAP treats it as an unauthenticated bind.
func (c *Client) VerifyPassword(ctx context.Context, userDN, password string) (bool, error) {
	if userDN == "" || password == "" {
		return false, nil
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial for user bind: %w", err)
	}
	userSess := newSession(conn)
	defer c.Release(ctx, userSess)

	err = c.run(ctx, "user bind", func() error {
		return conn.Bind(userDN, password)
	})
	switch {
	case err == nil:
		return true, nil
	case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials):
		return false, nil
	default:
		return false, fmt.Errorf("user bind: %w", err)
	}
}

// IsMember reports whether username is listed as a member uid of groupDN.
func (c *Client) IsMember(ctx context.Context, s *Session, groupDN, username string) (bool, error) {
	conn, err := s.active()
	if err != nil {
		return false, err
	}

	req := ldap.NewSearchRequest(
		groupDN,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(%s=%s)", attrMemberUID, ldap.EscapeFilter(username)),
		[]string{attrCN},
		nil,
	)

	var res *ldap.SearchResult
	err = c.run(ctx, "group search", func() error {
		var searchErr error
		res, searchErr = conn.Search(req)
		return searchErr
	})
	if err != nil {
		return false, fmt.Errorf("search group: %w", err)
	}
	return res != nil && len(res.Entries) > 0, nil
}

// Release unbinds the session's connection. It is safe to call more than
// once and never fails: unbind errors are logged and swallowed.
func (c *Client) Release(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		conn := s.conn
		s.mu.Unlock()

		if conn == nil {
			return
		}
		if err := conn.Unbind(); err != nil && !errors.Is(err, ldap.ErrConnUnbound) {
			logging.FromContext(ctx).WithField(logging.FieldComponent, "directory").
				WithError(err).Warn("LDAP unbind failed")
		}
	})
}

func (c *Client) dial(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		conn Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := c.dialer.Dial(ctx)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		// The dial may still complete; make sure its connection is not leaked.
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Unbind()
			}
		}()
		return nil, fmt.Errorf("dial: %w", ErrTimeout)
	}
}

// run executes op and abandons it once the operation timeout elapses. The
// caller is expected to release the connection afterwards, which unblocks
// the abandoned goroutine.
func (c *Client) run(ctx context.Context, name string, op func() error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", name, ErrTimeout)
	}
}
