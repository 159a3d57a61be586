// Package directorytest provides an in-memory directory that satisfies
// directory.Dialer, with connection accounting for leak assertions.
package directorytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/GoliathLabs/applica/internal/directory"
)

// Default identities used by New.
const (
	BaseDN        = "dc=example,dc=org"
	PeopleDN      = "ou=people," + BaseDN
	AdminDN       = "cn=admin," + BaseDN
	AdminPassword = "admin-secret"
	LeaderGroupDN = "cn=leaders,ou=groups," + BaseDN
)

// ErrConnClosed is returned by operations on an unbound fake connection.
var ErrConnClosed = errors.New("directorytest: connection closed")

type user struct {
	dn       string
	cn       string
	uid      string
	password string
}

// Directory is an in-memory LDAP stand-in. The zero value is not usable; use New.
type Directory struct {
	mu sync.Mutex

	adminDN       string
	adminPassword string
	users         []user
	groups        map[string][]string

	// failure injection
	dialErr     error
	adminErr    error
	searchErr   error
	userBindErr error
	unbindErr   error
	bindDelay   time.Duration
	searchDelay time.Duration

	opened  int
	unbound int
	binds   int
}

// New returns a directory with the default admin identity and an empty leader group.
func New() *Directory {
	return &Directory{
		adminDN:       AdminDN,
		adminPassword: AdminPassword,
		groups:        map[string][]string{LeaderGroupDN: nil},
	}
}

// AddUser registers uid under the people container and returns its DN.
func (d *Directory) AddUser(uid, commonName, password string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	dn := fmt.Sprintf("uid=%s,%s", uid, PeopleDN)
	d.users = append(d.users, user{dn: dn, cn: commonName, uid: uid, password: password})
	return dn
}

// AddMember lists uid as a memberUid of groupDN.
func (d *Directory) AddMember(groupDN, uid string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.groups[groupDN] = append(d.groups[groupDN], uid)
}

// FailDial makes every dial fail with err.
func (d *Directory) FailDial(err error) { d.set(func() { d.dialErr = err }) }

// FailAdminBind makes the admin bind fail with err.
func (d *Directory) FailAdminBind(err error) { d.set(func() { d.adminErr = err }) }

// FailSearch makes every search fail with err.
func (d *Directory) FailSearch(err error) { d.set(func() { d.searchErr = err }) }

// FailUserBind makes non-admin binds fail with err instead of checking the password.
func (d *Directory) FailUserBind(err error) { d.set(func() { d.userBindErr = err }) }

// FailUnbind makes every unbind report err. The connection is still counted as unbound.
func (d *Directory) FailUnbind(err error) { d.set(func() { d.unbindErr = err }) }

// DelayBind makes every bind block for delay or until the connection is unbound.
func (d *Directory) DelayBind(delay time.Duration) { d.set(func() { d.bindDelay = delay }) }

// DelaySearch makes every search block for delay or until the connection is unbound.
func (d *Directory) DelaySearch(delay time.Duration) { d.set(func() { d.searchDelay = delay }) }

func (d *Directory) set(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// Opened returns the number of connections dialed.
func (d *Directory) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// Unbound returns the number of connections unbound.
func (d *Directory) Unbound() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unbound
}

// Open returns the number of connections dialed but not yet unbound.
func (d *Directory) Open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened - d.unbound
}

// Binds returns the number of bind attempts seen.
func (d *Directory) Binds() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binds
}

// Dial implements directory.Dialer.
func (d *Directory) Dial(ctx context.Context) (directory.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.opened++
	return &conn{dir: d, closed: make(chan struct{})}, nil
}

type conn struct {
	dir    *Directory
	once   sync.Once
	closed chan struct{}
}

func (c *conn) wait(delay time.Duration) error {
	if delay <= 0 {
		select {
		case <-c.closed:
			return ErrConnClosed
		default:
			return nil
		}
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-c.closed:
		return ErrConnClosed
	}
}

func (c *conn) Bind(username, password string) error {
	d := c.dir
	d.mu.Lock()
	d.binds++
	delay := d.bindDelay
	d.mu.Unlock()

	if err := c.wait(delay); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if username == d.adminDN {
		if d.adminErr != nil {
			return d.adminErr
		}
		if password != d.adminPassword {
			return invalidCredentials()
		}
		return nil
	}
	if d.userBindErr != nil {
		return d.userBindErr
	}
	for _, u := range d.users {
		if u.dn == username && u.password == password {
			return nil
		}
	}
	return invalidCredentials()
}

func (c *conn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	d := c.dir
	d.mu.Lock()
	delay := d.searchDelay
	d.mu.Unlock()

	if err := c.wait(delay); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.searchErr != nil {
		return nil, d.searchErr
	}

	res := &ldap.SearchResult{}
	if req.Scope == ldap.ScopeBaseObject {
		members, ok := d.groups[req.BaseDN]
		if !ok {
			return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such group"))
		}
		for _, uid := range members {
			if req.Filter == fmt.Sprintf("(memberUid=%s)", ldap.EscapeFilter(uid)) {
				res.Entries = append(res.Entries, ldap.NewEntry(req.BaseDN, map[string][]string{"cn": {"leaders"}}))
				break
			}
		}
		return res, nil
	}

	for _, u := range d.users {
		if !strings.HasSuffix(u.dn, ","+req.BaseDN) {
			continue
		}
		if req.Filter != fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(u.uid)) {
			continue
		}
		res.Entries = append(res.Entries, ldap.NewEntry(u.dn, map[string][]string{
			"cn":  {u.cn},
			"uid": {u.uid},
		}))
	}
	return res, nil
}

func (c *conn) Unbind() error {
	first := false
	c.once.Do(func() {
		first = true
		close(c.closed)
	})
	if !first {
		return ldap.ErrConnUnbound
	}

	d := c.dir
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unbound++
	return d.unbindErr
}

func invalidCredentials() error {
	return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
}
