package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordSymbols is the set a password must draw at least one symbol from.
const PasswordSymbols = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|~`"

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores bytes past 72
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return Password(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			if fe.Tag() == "password" {
				msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), passwordRule))
				continue
			}
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

const passwordRule = "must be 8-72 characters with an uppercase letter, a lowercase letter, a digit and a symbol"

// Password checks the password strength policy.
func Password(p string) error {
	if len(p) < minPasswordLen || len(p) > maxPasswordLen {
		return fmt.Errorf("password %s", passwordRule)
	}
	var upper, lower, digit, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return fmt.Errorf("password %s", passwordRule)
	}
	return nil
}
