// Package auth implements directory-backed login and stateless session
// tokens.
//
// A login runs a strictly sequential state machine:
//
//	START     admin bind                     failure -> 503 DirectoryUnavailable
//	LOOKUP    find user by uid               none    -> 401 InvalidCredentials
//	VERIFY    bind as user, second conn      failure -> 401 InvalidCredentials
//	AUTHORIZE leader group membership        absent  -> 403 Forbidden
//	ISSUE     sign HS256 token, 30 minutes
//
// Unknown usernames, wrong passwords and directory errors after the admin
// bind produce the same response so usernames cannot be enumerated. The
// signed token is the only session artifact; nothing is stored server side.
package auth
