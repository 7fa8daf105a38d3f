// Package password implements credential hashing with argon2id and the
// plaintext policy applied before a password is accepted.
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=65536,t=2,p=2$<salt-b64>$<hash-b64>
//
// Verification reads the cost parameters out of the stored hash, so cost
// changes roll out without invalidating existing credentials; NeedsRehash
// tells callers when to rewrite one.
package password
