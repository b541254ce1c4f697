package gate

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPIN returns a salted bcrypt hash of pin.
func HashPIN(pin string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// MatchPIN reports whether pin hashes to hash. An empty hash never matches.
func MatchPIN(hash, pin string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
