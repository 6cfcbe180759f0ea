package rls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/rlskit/pkg/logger"
)

// roleQuery reads the flags of the role statements actually run as, which
// differs from the login role after SET ROLE.
const roleQuery = `SELECT current_user::text, rolsuper, rolbypassrls FROM pg_roles WHERE rolname = current_user`

// Checker verifies at startup that row security cannot be bypassed.
type Checker struct {
	cfg Config
	log *slog.Logger
}

// NewChecker builds a Checker. A nil logger means slog.Default().
func NewChecker(cfg Config, log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}
	return &Checker{cfg: cfg, log: log.With(logger.Component("rls.security"))}
}

// Enabled reports whether checks run. Admin mode and a disabled
// SecurityValidation flag both skip them.
func (c *Checker) Enabled() bool {
	return c.cfg.SecurityValidation && !c.cfg.AdminMode
}

// Validate runs ValidateEnvironment then ValidateDatabaseUser.
// Any error is fatal: the process must not serve requests.
func (c *Checker) Validate(ctx context.Context, conn Conn) error {
	if err := c.ValidateEnvironment(); err != nil {
		return err
	}
	return c.ValidateDatabaseUser(ctx, conn)
}

// ValidateEnvironment checks the configured application role.
func (c *Checker) ValidateEnvironment() error {
	if !c.Enabled() {
		c.log.Info("security validation skipped", slog.Bool("admin_mode", c.cfg.AdminMode))
		return nil
	}

	role := strings.TrimSpace(c.cfg.AppRole)
	if role == "" {
		return fmt.Errorf("%w: application database role is not set (POSTGRES_APP_USER)", ErrConfiguration)
	}
	if c.cfg.isPrivileged(role) {
		return fmt.Errorf("%w: application role '%s' is a privileged role, use a dedicated non-privileged role", ErrSecurity, role)
	}
	return nil
}

// ValidateDatabaseUser fails with ErrSecurity when the connected role is a
// superuser or has BYPASSRLS.
func (c *Checker) ValidateDatabaseUser(ctx context.Context, conn Conn) error {
	if !c.Enabled() {
		return nil
	}

	var (
		role          string
		super, bypass bool
	)
	if err := conn.QueryRow(ctx, roleQuery).Scan(&role, &super, &bypass); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: current role not found in pg_roles", ErrSecurity)
		}
		c.log.ErrorContext(ctx, "security check failed", logger.Error(err))
		return fmt.Errorf("read role privileges: %w", err)
	}

	switch {
	case bypass:
		err := fmt.Errorf("%w: database user '%s' has BYPASSRLS privilege, connect as a role without it", ErrSecurity, role)
		c.log.ErrorContext(ctx, "security check failed", logger.DBRole(role), logger.Error(err))
		return err
	case super:
		err := fmt.Errorf("%w: database user '%s' is a superuser, connect as a non-privileged role", ErrSecurity, role)
		c.log.ErrorContext(ctx, "security check failed", logger.DBRole(role), logger.Error(err))
		return err
	}

	if c.cfg.AppRole != "" && !strings.EqualFold(role, c.cfg.AppRole) {
		c.log.WarnContext(ctx, "connected role differs from configured application role",
			logger.DBRole(role), slog.String("app_role", c.cfg.AppRole))
	}

	c.log.InfoContext(ctx, "security check passed", logger.DBRole(role))
	return nil
}
