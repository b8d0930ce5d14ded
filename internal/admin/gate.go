// Package admin holds the privileged core of the API: the authorization gate
// every admin endpoint re-runs, and the dashboard aggregation behind it.
package admin

import (
	"context"
	"fmt"
	"strings"

	"github.com/purpose-technology/namapp-server/internal/database"
	"github.com/purpose-technology/namapp-server/internal/errors"
	"github.com/purpose-technology/namapp-server/internal/identity"
	"github.com/purpose-technology/namapp-server/internal/logging"
)

// TokenVerifier resolves a bearer token to a principal. Satisfied by
// *identity.Client.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Principal, error)
}

// Session is the result of a successful gate pass. It lives for one request:
// the principal id for audit logging and the privileged repository for the
// reads and writes that follow. Repo is the process-wide service-role handle;
// the session only lends it out, it never owns or serializes it.
type Session struct {
	PrincipalID string
	Email       string
	Repo        *database.Repository
}

// UserSession is the consumer-endpoint counterpart: identity only, no role
// requirement, and a repository bound to the caller's own token so row-level
// security stays in force.
type UserSession struct {
	Principal *identity.Principal
	Repo      *database.Repository
}

// Gate authorizes privileged requests. One instance is built at startup and
// shared; it holds no per-request state.
type Gate struct {
	verifier TokenVerifier
	repo     *database.Repository
	logger   *logging.Logger
}

// NewGate creates the gate over the identity verifier and the privileged
// repository.
func NewGate(verifier TokenVerifier, repo *database.Repository, logger *logging.Logger) *Gate {
	return &Gate{verifier: verifier, repo: repo, logger: logger}
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return parts[1], nil
}

// Authorize runs the full admin gate: header extraction, token resolution,
// role check. Every failure denies; a role lookup error is collapsed into the
// same forbidden outcome as "not an admin" and never grants by default. The
// header check happens before any backend I/O.
func (g *Gate) Authorize(ctx context.Context, authHeader string) (*Session, error) {
	token, err := ExtractBearer(authHeader)
	if err != nil {
		return nil, errors.CredentialMissing("missing credential")
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Warn("token resolution failed")
		return nil, errors.CredentialInvalid(err)
	}

	role, err := g.repo.GetUserRole(ctx, principal.ID)
	if err != nil {
		// Fail closed: an errored lookup denies exactly like a missing row.
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"user_id": principal.ID,
		}).Warn("role lookup failed, denying")
		return nil, errors.Forbidden("insufficient privilege")
	}
	if role != database.RoleAdmin {
		return nil, errors.Forbidden("insufficient privilege")
	}

	return &Session{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Repo:        g.repo,
	}, nil
}

// AuthorizeUser authenticates a consumer request without any role
// requirement. The returned repository carries the caller's token, not the
// service role.
func (g *Gate) AuthorizeUser(ctx context.Context, authHeader string) (*UserSession, error) {
	token, err := ExtractBearer(authHeader)
	if err != nil {
		return nil, errors.CredentialMissing("missing credential")
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Warn("token resolution failed")
		return nil, errors.CredentialInvalid(err)
	}

	return &UserSession{
		Principal: principal,
		Repo:      g.repo.WithUserToken(token),
	}, nil
}

// AuthorizeSubmitter authorizes app submission: developers and admins only.
// Same fail-closed role handling as Authorize.
func (g *Gate) AuthorizeSubmitter(ctx context.Context, authHeader string) (*Session, error) {
	token, err := ExtractBearer(authHeader)
	if err != nil {
		return nil, errors.CredentialMissing("missing credential")
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Warn("token resolution failed")
		return nil, errors.CredentialInvalid(err)
	}

	role, err := g.repo.GetUserRole(ctx, principal.ID)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"user_id": principal.ID,
		}).Warn("role lookup failed, denying")
		return nil, errors.Forbidden("insufficient privilege")
	}
	if role != database.RoleAdmin && role != database.RoleDeveloper {
		return nil, errors.Forbidden("developer account required")
	}

	return &Session{
		PrincipalID: principal.ID,
		Email:       principal.Email,
		Repo:        g.repo,
	}, nil
}
