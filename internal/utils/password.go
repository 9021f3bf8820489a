package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a viewer's password with bcrypt at the given cost.
// The cost comes from config so test environments can run cheap while
// production stays slow.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// Any bcrypt error, including a malformed hash, counts as a mismatch.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
