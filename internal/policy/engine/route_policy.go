package engine

// defaultPackage is the Rego package of the built-in route policy.
const defaultPackage = "workflow.authz"

// defaultRoutePolicy decides access to HTTP routes. Session endpoints are
// public, /api/admin requires ROLE_ADMIN, the rest of /api needs any
// authenticated user, and everything outside /api is open.
const defaultRoutePolicy = `package workflow.authz

public_endpoints := {"/api/login", "/api/refresh", "/api/logout"}

is_api if startswith(input.path, "/api/")

is_admin if startswith(input.path, "/api/admin/")

is_admin if input.path == "/api/admin"

default allow := false

allow if not is_api

allow if {
	input.method == "POST"
	input.path in public_endpoints
}

allow if {
	is_api
	not is_admin
	input.authenticated
}

allow if {
	is_admin
	"ROLE_ADMIN" in input.authorities
}

default reason := "forbidden"

reason := "" if allow

reason := "unauthenticated" if {
	not allow
	not input.authenticated
}

decision := {"allow": allow, "reason": reason}
`
