package directory

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of an LDAP connection the client needs. *ldap.Conn
// satisfies it.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Unbind() error
}

// Dialer opens new directory connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// URLDialer dials an ldap:// or ldaps:// URL with a connect timeout and sets
// the per-request timeout on the returned connection.
type URLDialer struct {
	URL     string
	Timeout time.Duration
}

// Dial connects to the configured URL.
func (d URLDialer) Dial(ctx context.Context) (Conn, error) {
	netDialer := &net.Dialer{Timeout: d.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		netDialer.Deadline = deadline
	}
	conn, err := ldap.DialURL(d.URL, ldap.DialWithDialer(netDialer))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	if d.Timeout > 0 {
		conn.SetTimeout(d.Timeout)
	}
	return conn, nil
}
