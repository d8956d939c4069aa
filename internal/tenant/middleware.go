package tenant

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const tenantContextKey contextKey = "tenant.id"

// SlugLookup maps a store subdomain such as "cafe" to its tenant UUID.
type SlugLookup interface {
	TenantIDBySlug(ctx context.Context, slug string) (uuid.UUID, error)
}

// Resolver finds the tenant of a till request. The header carries the
// tenant UUID directly. Subdomains of RootDomain are read only when
// RootDomain is set; they may be a UUID or a slug known to Slugs.
type Resolver struct {
	HeaderName    string
	RootDomain    string
	DefaultTenant string
	Slugs         SlugLookup
}

// NewResolver returns a resolver for the given header, root domain and
// default tenant UUID. headerName defaults to "X-Tenant-ID".
func NewResolver(headerName, rootDomain, defaultTenant string) *Resolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &Resolver{
		HeaderName:    headerName,
		RootDomain:    strings.Trim(strings.ToLower(strings.TrimSpace(rootDomain)), "."),
		DefaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// WithSlugs sets the lookup used for slug subdomains.
func (r *Resolver) WithSlugs(slugs SlugLookup) *Resolver {
	r.Slugs = slugs
	return r
}

// Middleware stores the resolved tenant, or DefaultTenant, in the request
// context. Validation is left to RequireTenant.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tenantID := r.Resolve(req)
		if tenantID == "" {
			tenantID = r.DefaultTenant
		}
		if tenantID != "" {
			req = req.WithContext(WithTenant(req.Context(), tenantID))
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve returns the tenant named by the header or the store subdomain, or
// "" when the request names none.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if tenantID := strings.TrimSpace(req.Header.Get(r.HeaderName)); tenantID != "" {
		return tenantID
	}

	sub := r.subdomain(hostWithoutPort(req.Host))
	if sub == "" {
		return ""
	}
	if id, err := uuid.Parse(sub); err == nil {
		return id.String()
	}
	if r.Slugs == nil {
		return sub
	}
	id, err := r.Slugs.TenantIDBySlug(req.Context(), sub)
	if err != nil {
		// unknown store, RequireTenant reports it as invalid
		return sub
	}
	return id.String()
}

// subdomain returns the first label left of RootDomain. Hosts outside
// RootDomain, including localhost and bare IPs, have none.
func (r *Resolver) subdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if r.RootDomain == "" || host == "" || host == r.RootDomain {
		return ""
	}
	rest, ok := strings.CutSuffix(host, "."+r.RootDomain)
	if !ok || rest == "" {
		return ""
	}
	labels := strings.Split(rest, ".")
	return labels[len(labels)-1]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(hostport, "[]")
}

// WithTenant stores the tenant identifier inside the context.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantContextKey, tenantID)
}

// FromContext extracts the tenant identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	tenantID, ok := ctx.Value(tenantContextKey).(string)
	if !ok {
		return "", false
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", false
	}
	return tenantID, true
}
