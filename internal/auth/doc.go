// Package auth provides password hashing and verification for account
// credentials.
//
// Hashes use argon2id with a fresh random salt per hash and are stored
// in the PHC string format, so the algorithm parameters and salt travel
// with the hash:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<base64 salt>$<base64 key>
//
// Verification re-derives the key from the stored parameters and salt
// and compares in constant time. Plaintext passwords are never stored
// and hashes never leave the accounts repository boundary.
package auth
