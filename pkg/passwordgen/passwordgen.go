// Package passwordgen generates temporary administrator passwords for newly
// provisioned tenants.
//
// Every password contains at least one character from each required class
// (lowercase, uppercase, digit, symbol). The class-seeded characters are
// shuffled into random positions so they are not distinguishable from the
// rest of the password.
package passwordgen

import (
	"crypto/rand"
	"math/big"
)

const (
	lower   = "abcdefghijklmnopqrstuvwxyz"
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// Length is the fixed length of generated passwords.
	Length = 16
)

// Generate returns a new random password satisfying the class requirements.
func Generate() string {
	combined := lower + upper + digits + symbols

	buf := make([]byte, 0, Length)
	buf = append(buf,
		lower[randInt(len(lower))],
		upper[randInt(len(upper))],
		digits[randInt(len(digits))],
		symbols[randInt(len(symbols))],
	)
	for len(buf) < Length {
		buf = append(buf, combined[randInt(len(combined))])
	}

	// Fisher-Yates so the seeded class characters lose their fixed positions.
	for i := len(buf) - 1; i > 0; i-- {
		j := randInt(i + 1)
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf)
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// Temporary passwords guard tenant admin accounts; a broken platform
		// RNG must not degrade into predictable output.
		panic("passwordgen: crypto/rand unavailable: " + err.Error())
	}
	return int(v.Int64())
}
