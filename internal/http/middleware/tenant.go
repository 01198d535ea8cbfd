package middleware

import (
	"net/http"

	"github.com/clinicware/clinic-ai-platform/internal/tenancy"
)

// ResolveTenant stores the request's tenant id in the context. The X-Tenant-Id
// header wins over the tenant_id query parameter; absent both, defaultTenant
// applies.
func ResolveTenant(defaultTenant string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := r.Header.Get("X-Tenant-Id")
			if tenant == "" {
				tenant = r.URL.Query().Get("tenant_id")
			}
			if tenant == "" {
				tenant = defaultTenant
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithTenantID(r.Context(), tenant)))
		})
	}
}
