package tenant

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"slices"
	"strings"
)

const (
	// MaxLabelLength is the DNS label limit, also applied to header values.
	MaxLabelLength = 63

	// DefaultLocalSuffix is the top label accepted for two-label development hosts.
	DefaultLocalSuffix = "localhost"
)

// DefaultReserved lists subdomains that never name a tenant.
var DefaultReserved = []string{"www"}

// labelPattern ensures DNS-safe labels: alphanumeric start, allows hyphens, no dots
var labelPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*$`)

// Resolver extracts a tenant identifier from an HTTP request.
// Returns empty string if no tenant found, error if extraction failed.
type Resolver func(r *http.Request) (string, error)

// SubdomainOptions controls how hosts are split into tenant subdomains.
type SubdomainOptions struct {
	// LocalSuffix allows "acme.localhost" style hosts with only two labels.
	LocalSuffix string
	// Reserved labels are treated as "no subdomain".
	Reserved []string
}

func (o SubdomainOptions) withDefaults() SubdomainOptions {
	if o.LocalSuffix == "" {
		o.LocalSuffix = DefaultLocalSuffix
	}
	if o.Reserved == nil {
		o.Reserved = DefaultReserved
	}
	reserved := make([]string, 0, len(o.Reserved))
	for _, r := range o.Reserved {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			reserved = append(reserved, r)
		}
	}
	o.Reserved = reserved
	return o
}

// ExtractSubdomain returns the leading label of host when it names a tenant
// subdomain: three or more labels, or exactly two labels ending in the local
// development suffix. Reserved labels and bare domains yield "".
func ExtractSubdomain(host string, opts SubdomainOptions) string {
	return extractSubdomain(host, opts.withDefaults())
}

func extractSubdomain(host string, opts SubdomainOptions) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.IndexByte(host, ':')]
	}
	if strings.Contains(host, ":") || net.ParseIP(host) != nil {
		return ""
	}

	parts := strings.Split(strings.TrimSuffix(host, "."), ".")
	isLocal := len(parts) == 2 && strings.EqualFold(parts[1], opts.LocalSuffix)
	if len(parts) < 3 && !isLocal {
		return ""
	}

	sub := strings.ToLower(parts[0])
	if sub == "" || slices.Contains(opts.Reserved, sub) {
		return ""
	}
	return sub
}

func isValidLabel(id string) bool {
	if id == "" || len(id) > MaxLabelLength {
		return false
	}
	return labelPattern.MatchString(id)
}

// NewSubdomainResolver extracts the tenant subdomain from the request host.
// Returns empty string for base domains and reserved labels.
func NewSubdomainResolver(opts SubdomainOptions) Resolver {
	opts = opts.withDefaults()

	return func(req *http.Request) (string, error) {
		sub := extractSubdomain(req.Host, opts)
		if sub == "" {
			return "", nil
		}
		if !isValidLabel(sub) {
			return "", fmt.Errorf("%w: subdomain '%s'", ErrInvalidArgument, sub)
		}
		return sub, nil
	}
}

// NewHeaderResolver extracts tenant from HTTP header.
// Defaults to "X-Tenant-ID" if headerName is empty.
func NewHeaderResolver(headerName string) Resolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}

	return func(req *http.Request) (string, error) {
		value := strings.TrimSpace(req.Header.Get(headerName))
		if value == "" {
			return "", nil
		}
		if !isValidLabel(value) {
			return "", fmt.Errorf("%w: header value '%s'", ErrInvalidArgument, value)
		}
		return value, nil
	}
}

// NewCompositeResolver tries multiple resolvers in order, returning the first non-empty result.
// Aggregates errors from all resolvers for debugging.
func NewCompositeResolver(resolvers ...Resolver) Resolver {
	return func(r *http.Request) (string, error) {
		var errs []error

		for _, resolver := range resolvers {
			id, err := resolver(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if id != "" {
				return id, nil
			}
		}

		if len(errs) > 0 {
			return "", fmt.Errorf("composite resolver errors: %w", errors.Join(errs...))
		}

		return "", nil
	}
}
