package auth

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// PasswordSpecials lists the characters accepted as "special".
	PasswordSpecials = `!@#$%^&*(),.?":{}|<>`
)

type Strength string

const (
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

// PasswordReport lists the rules a password fails and its strength.
type PasswordReport struct {
	Valid    bool     `json:"valid"`
	Strength Strength `json:"strength"`
	Score    int      `json:"score"`
	Failures []string `json:"errors,omitempty"`
}

func CheckPassword(password string) PasswordReport {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}

	var failures []string
	length := len([]rune(password))
	if length < MinPasswordLength {
		failures = append(failures, "password must be at least 8 characters long")
	}
	if !upper {
		failures = append(failures, "password must contain at least one uppercase letter")
	}
	if !lower {
		failures = append(failures, "password must contain at least one lowercase letter")
	}
	if !digit {
		failures = append(failures, "password must contain at least one digit")
	}
	if !special {
		failures = append(failures, "password must contain at least one special character ("+PasswordSpecials+")")
	}

	score := 0
	for _, ok := range []bool{upper, lower, digit, special, length >= MinPasswordLength, length >= 12, length >= 16} {
		if ok {
			score++
		}
	}

	return PasswordReport{
		Valid:    len(failures) == 0,
		Strength: strengthFor(score),
		Score:    score,
		Failures: failures,
	}
}

func strengthFor(score int) Strength {
	switch {
	case score >= 7:
		return StrengthVeryStrong
	case score >= 5:
		return StrengthStrong
	case score >= 3:
		return StrengthMedium
	}
	return StrengthWeak
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ComparePassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
