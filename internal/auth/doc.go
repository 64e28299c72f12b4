// Package auth verifies JWT bearer tokens on incoming requests and,
// optionally, evaluates a CEL authorization policy against the
// authenticated subject, the target stream, and the HTTP method.
//
// Example:
//
//	verifier, err := auth.NewVerifier(auth.KeySource{HMACSecret: []byte(secret)}, "hematite")
//	policy, err := auth.LoadPolicy(`sub == "ops" || method == "GET"`)
//	claims, err := verifier.Verify(bearerToken)
//	err = policy.Authorize(claims.Subject, streamID, r.Method)
package auth
