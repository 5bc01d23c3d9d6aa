package access

import (
	"context"
	"net/http"
	"strings"

	"github.com/segyhp/koperasi-loan-engine/pkg/response"
)

// Identity headers set by the gateway in front of the engine
const (
	HeaderRole     = "X-User-Role"
	HeaderDivision = "X-User-Division"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RolePengurus   Role = "pengurus"
	RoleKaryawan   Role = "karyawan"
	RoleMasyarakat Role = "masyarakat"
)

type Division string

const (
	DivisionSimpanPinjam Division = "simpan_pinjam"
	DivisionAdministrasi Division = "administrasi"
)

type Permission int

const (
	// PermissionRead covers listings, schedules and balances
	PermissionRead Permission = iota
	// PermissionWrite covers disbursing loans and recording or editing installments
	PermissionWrite
	// PermissionManage covers deletes and status overrides
	PermissionManage
)

type Identity struct {
	Role     Role
	Division Division
}

var rolePermissions = map[Role][]Permission{
	RoleAdmin:    {PermissionRead, PermissionWrite, PermissionManage},
	RolePengurus: {PermissionRead, PermissionWrite, PermissionManage},
	RoleKaryawan: {PermissionRead, PermissionWrite},
}

var loanDivisions = map[Division]bool{
	DivisionSimpanPinjam: true,
	DivisionAdministrasi: true,
}

// Can reports whether the identity holds p. Admins are not bound to a division.
func (id Identity) Can(p Permission) bool {
	granted := false
	for _, candidate := range rolePermissions[id.Role] {
		if candidate == p {
			granted = true
			break
		}
	}
	if !granted {
		return false
	}

	return id.Role == RoleAdmin || loanDivisions[id.Division]
}

// FromRequest reads the caller identity from the gateway headers
func FromRequest(r *http.Request) Identity {
	return Identity{
		Role:     Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole)))),
		Division: Division(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderDivision)))),
	}
}

type contextKey struct{}

// FromContext returns the identity stored by Require
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Require rejects requests whose identity lacks p
func Require(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromRequest(r)
			if id.Role == "" {
				response.Unauthorized(w, "Missing caller identity")
				return
			}
			if !id.Can(p) {
				response.Forbidden(w, "Role "+string(id.Role)+" may not perform this action")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, id)))
		})
	}
}
