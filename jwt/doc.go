// Package jwt is the token codec: it signs and verifies compact JWTs that
// carry an account identity, a point-in-time profile snapshot, and a token
// kind.
//
// Every token carries a kind ([KindAccess], [KindRefresh], [KindReset] or
// [KindVerify]) and each kind has its own required claim set, checked when
// a token is parsed. Parse verifies the signature before it looks at expiry
// or content. The kind embedded in a token is never enough on its own:
// callers must still call [Claims.Require] for the operation they serve.
//
// Signing keys are fixed for the life of a [Manager]. Verification against
// retired keys is possible through Config.VerifyKeys indexed by "kid".
package jwt
