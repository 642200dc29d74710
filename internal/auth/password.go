package auth

import "github.com/alexedwards/argon2id"

// DefaultPasswordParams are the argon2id parameters for local directory
// credentials. They follow the OWASP minimum so seeding the demo accounts
// stays fast.
var DefaultPasswordParams = &argon2id.Params{
	Memory:      19 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword returns the encoded argon2id hash stored in a directory
// entry's passwordHash field.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, DefaultPasswordParams)
}

// ComparePassword reports whether password matches an argon2id hash produced by HashPassword.
func ComparePassword(password, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password, hash)
}
