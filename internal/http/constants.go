package httpx

// Cookie names used by the gateway. The session cookie carries the
// opaque server-side session ID; the edge cookie carries the signed
// token the edge guard verifies without touching the session store.
const (
	CookieSession   = "session_id"
	CookieEdgeToken = "edge_token"

	// Short-lived cookies for the staff SSO flow.
	CookieOAuthState = "oauth_state"
	CookieOAuthNonce = "oauth_nonce"

	// Where to send the user after login completes.
	CookiePostLoginNext = "post_login_next"
)

// oauthCookieMaxAge bounds the SSO state/nonce cookies to the length of
// one login attempt.
const oauthCookieMaxAge = 600 // 10 minutes

// Layer labels recorded with access denials.
const (
	DenialLayerEdge  = "edge"
	DenialLayerGuard = "guard"
)
