// Package auth turns a bearer token into an authorization decision.
//
// # Pipeline
//
// Every protected request passes these stages in order:
//   - TokenVerified: the RS256 signature is checked against the provider's
//     key set, together with audience, issuer and expiry. Failure is a 401.
//   - IdentityResolved: the token subject is mapped to a local account,
//     creating it on first sight. Inactive accounts get a 403.
//   - PermissionsResolved: the Resolver reads the account role's active
//     permissions from the local store on every request.
//   - Allowed or Denied: route predicates decide. A denial is a 403 listing
//     the required and missing permissions only.
//
// The outcome is a single Context stored in the fiber locals, see FromCtx.
//
// # Policies
//
// Predicates compose:
//
//	app.Put("/accounts/:id/role",
//	    auth.Require(auth.AllOf(auth.PermRolesAssign), auth.NotSelf(auth.Param("id"))),
//	    handler,
//	)
//
// # Key set
//
// Signing keys are fetched from https://{domain}/.well-known/jwks.json,
// cached for JWKS.CacheTTL and never fetched more often than
// JWKS.RequestsPerMinute.
package auth
