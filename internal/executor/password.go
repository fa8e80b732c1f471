package executor

import (
	"crypto/rand"
	"math/big"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+"

// generatePassword produces a one-time console password. The login profile
// is created with a forced reset, so the value only has to survive first
// sign-in.
func generatePassword(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	// Guarantee one of each class the account password policy may require.
	buf[0] = 'a'
	buf[1] = 'Z'
	buf[2] = '4'
	buf[3] = '!'
	return string(buf), nil
}
