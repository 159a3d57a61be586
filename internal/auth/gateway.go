package auth

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/thejerf/abtime"

	"github.com/GoliathLabs/applica/internal/apierr"
	"github.com/GoliathLabs/applica/internal/directory"
	"github.com/GoliathLabs/applica/internal/logging"
	"github.com/GoliathLabs/applica/internal/telemetry"
)

// Directory is the subset of the directory client used by the gateway.
type Directory interface {
	BindAsAdmin(ctx context.Context) (*directory.Session, error)
	FindUserByName(ctx context.Context, s *directory.Session, username string) (*directory.User, error)
	VerifyPassword(ctx context.Context, userDN, password string) (bool, error)
	IsMember(ctx context.Context, s *directory.Session, groupDN, username string) (bool, error)
	Release(ctx context.Context, s *directory.Session)
}

// Credentials is a login request. The password is never logged.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Claims SessionClaims `json:"user"`
	Token  string        `json:"token"`
}

// Gateway orchestrates directory login and token issuance.
type Gateway struct {
	dir           Directory
	issuer        *TokenIssuer
	leaderGroupDN string
	metrics       *telemetry.Metrics
	clock         abtime.AbstractTime
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithMetrics records login outcomes on m.
func WithMetrics(m *telemetry.Metrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithClock replaces the clock used to time login attempts.
func WithClock(clock abtime.AbstractTime) GatewayOption {
	return func(g *Gateway) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGateway wires a directory, a token issuer and the privileged group DN.
func NewGateway(dir Directory, issuer *TokenIssuer, leaderGroupDN string, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		dir:           dir,
		issuer:        issuer,
		leaderGroupDN: leaderGroupDN,
		clock:         abtime.NewRealTime(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login authenticates creds against the directory and issues a session
// token. Errors are always *apierr.Error values safe to render.
func (g *Gateway) Login(ctx context.Context, creds Credentials) (result *LoginResult, err error) {
	started := g.clock.Now()
	ctx, span := telemetry.StartLogin(ctx, creds.Username)

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		logging.FieldComponent: "auth",
		logging.FieldUsername:  creds.Username,
	})

	outcome := telemetry.OutcomeError
	defer func() {
		g.metrics.Login(ctx, outcome, g.clock.Now().Sub(started))
		telemetry.EndLogin(span, outcome, err)
	}()

	if !g.issuer.Configured() {
		log.Error("login refused: session signing secret is not configured")
		return nil, apierr.Misconfigured(ErrMisconfigured)
	}

	// START
	sess, bindErr := g.dir.BindAsAdmin(ctx)
	if bindErr != nil {
		outcome = telemetry.OutcomeUnavailable
		log.WithError(bindErr).Warn("login unavailable: directory admin bind failed")
		return nil, apierr.DirectoryUnavailable(bindErr)
	}
	defer g.dir.Release(ctx, sess)

	// LOOKUP
	telemetry.LoginStep(span, "lookup")
	user, lookupErr := g.dir.FindUserByName(ctx, sess, creds.Username)
	if lookupErr != nil || user == nil {
		outcome = telemetry.OutcomeRejected
		log.WithError(orNotFound(lookupErr)).Warn("login rejected at lookup")
		return nil, apierr.InvalidCredentials(orNotFound(lookupErr))
	}

	// VERIFY
	telemetry.LoginStep(span, "verify")
	ok, verifyErr := g.dir.VerifyPassword(ctx, user.DN, creds.Password)
	if verifyErr != nil || !ok {
		outcome = telemetry.OutcomeRejected
		cause := verifyErr
		if cause == nil {
			cause = errWrongPassword
		}
		log.WithError(cause).Warn("login rejected at password verification")
		return nil, apierr.InvalidCredentials(cause)
	}

	// AUTHORIZE
	telemetry.LoginStep(span, "authorize")
	member, memberErr := g.dir.IsMember(ctx, sess, g.leaderGroupDN, creds.Username)
	if memberErr != nil {
		outcome = telemetry.OutcomeRejected
		log.WithError(memberErr).Warn("login rejected: membership lookup failed")
		return nil, apierr.InvalidCredentials(memberErr)
	}
	if !member {
		outcome = telemetry.OutcomeForbidden
		log.Warn("login forbidden: user is not in the leader group")
		return nil, apierr.Forbidden(errNotMember)
	}

	// ISSUE
	claims, token, issueErr := g.issuer.Issue(creds.Username, user.CommonName)
	if issueErr != nil {
		log.WithError(issueErr).Error("login failed: could not sign session token")
		if errors.Is(issueErr, ErrMisconfigured) {
			return nil, apierr.Misconfigured(issueErr)
		}
		return nil, apierr.New(apierr.KindUnexpected, apierr.MsgInternal, issueErr)
	}

	outcome = telemetry.OutcomeAuthenticated
	log.WithField("expires_at", claims.ExpiresAt).Info("login succeeded")
	return &LoginResult{Claims: claims, Token: token}, nil
}

var (
	errUserNotFound  = errors.New("user not found")
	errWrongPassword = errors.New("password rejected by directory")
	errNotMember     = errors.New("user is not a member of the leader group")
)

func orNotFound(err error) error {
	if err != nil {
		return err
	}
	return errUserNotFound
}
