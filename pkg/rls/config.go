package rls

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config is built once at startup and passed by value to every component.
type Config struct {
	TenantIDColumn string `env:"RLS_TENANT_ID_COLUMN" envDefault:"tenant_id"` // TenantIDColumn is the column compared by every policy.
	Namespace      string `env:"RLS_NAMESPACE" envDefault:"rls"`              // Namespace prefixes the session variable.

	// AppRole is the restricted role the application connects as.
	AppRole            string `env:"POSTGRES_APP_USER"`
	SecurityValidation bool   `env:"RLS_SECURITY_VALIDATION" envDefault:"true"`
	// AdminMode skips the security checks for install and migration flows
	// that legitimately run as a privileged role.
	AdminMode       bool     `env:"RLS_ADMIN_MODE" envDefault:"false"`
	PrivilegedRoles []string `env:"RLS_PRIVILEGED_ROLES" envSeparator:"," envDefault:"postgres,rdsadmin,azure_superuser,cloudsqlsuperuser,supabase_admin,root,admin"`

	SubdomainResolution bool     `env:"RLS_SUBDOMAIN_RESOLUTION" envDefault:"false"`
	SubdomainField      string   `env:"RLS_SUBDOMAIN_FIELD" envDefault:"subdomain"`
	LocalDomainSuffix   string   `env:"RLS_LOCAL_DOMAIN_SUFFIX" envDefault:"localhost"`
	ReservedSubdomains  []string `env:"RLS_RESERVED_SUBDOMAINS" envSeparator:"," envDefault:"www"`
}

// DefaultConfig mirrors the envDefault tags for callers that do not load
// configuration from the environment.
func DefaultConfig() Config {
	return Config{
		TenantIDColumn:     "tenant_id",
		Namespace:          "rls",
		SecurityValidation: true,
		PrivilegedRoles: []string{
			"postgres", "rdsadmin", "azure_superuser", "cloudsqlsuperuser",
			"supabase_admin", "root", "admin",
		},
		SubdomainField:     "subdomain",
		LocalDomainSuffix:  tenant.DefaultLocalSuffix,
		ReservedSubdomains: tenant.DefaultReserved,
	}
}

// Validate checks the identifiers that end up inside SQL text.
func (c Config) Validate() error {
	idents := []struct{ name, value string }{
		{"tenant id column", c.TenantIDColumn},
		{"namespace", c.Namespace},
		{"subdomain field", c.SubdomainField},
	}
	for _, id := range idents {
		if !identPattern.MatchString(id.value) {
			return fmt.Errorf("%w: %s %q must be a lower-case SQL identifier", ErrConfiguration, id.name, id.value)
		}
	}
	if c.AppRole != "" && !identPattern.MatchString(c.AppRole) {
		return fmt.Errorf("%w: app role %q must be a lower-case SQL identifier", ErrConfiguration, c.AppRole)
	}
	return nil
}

// SessionVar is the fully qualified custom setting, e.g. "rls.tenant_id".
func (c Config) SessionVar() string {
	return c.Namespace + "." + c.TenantIDColumn
}

// SubdomainOptions adapts the config for tenant.ExtractSubdomain.
func (c Config) SubdomainOptions() tenant.SubdomainOptions {
	return tenant.SubdomainOptions{
		LocalSuffix: c.LocalDomainSuffix,
		Reserved:    c.ReservedSubdomains,
	}
}

func (c Config) isPrivileged(role string) bool {
	return slices.ContainsFunc(c.PrivilegedRoles, func(p string) bool {
		return strings.EqualFold(strings.TrimSpace(p), role)
	})
}
