// Package careauth implements the account security core of the clinic
// scheduling backend: JWT access and refresh tokens, emailed one-time-code
// challenges for email verification, email change, and password reset, and
// the account lifecycle around them.
//
// The engine is storage agnostic. Host applications inject a
// UserRepository for accounts, an otp.Store for challenge records (redis
// and postgres implementations ship in otp/ and pgstore/), and a Messenger
// for code delivery. HTTP enforcement lives in middleware/.
package careauth
