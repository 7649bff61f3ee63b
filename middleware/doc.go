// Package middleware adapts authgate token verification to net/http.
//
// [Guard] requires an authenticated principal and rejects everything else
// with 401; [Optional] resolves whatever identity is present and lets
// guests pass. Both inject the resolved [authgate.Principal] into the
// request context, where handlers read it with [PrincipalFromContext].
// [ClientInfo] annotates requests with the caller's address and User-Agent
// so engine calls further down audit and classify correctly.
//
// The package only translates HTTP to engine calls; it never parses tokens
// itself and makes no authorization decisions beyond authenticated-or-not.
// Role checks belong to the application.
package middleware
