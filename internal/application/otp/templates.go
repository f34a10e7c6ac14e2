package otp

import (
	"fmt"
	"time"

	"github.com/go-rental-auth/internal/domain"
)

type message struct {
	Subject string
	Body    string
}

func render(purpose domain.Purpose, name, code string, window time.Duration) message {
	minutes := int(window.Minutes())
	switch purpose {
	case domain.PurposePasswordReset:
		return message{
			Subject: "Password Reset Request",
			Body: fmt.Sprintf("Hello %s,\n\nYou requested to reset your password. Use the code below to proceed:\n\n%s\n\n"+
				"This code will expire in %d minutes. If you did not request a password reset, please ignore this email.\n",
				name, code, minutes),
		}
	default:
		return message{
			Subject: "Verify Your Email",
			Body: fmt.Sprintf("Hello %s,\n\nThank you for signing up! Please verify your email using the code below:\n\n%s\n\n"+
				"This code will expire in %d minutes.\n",
				name, code, minutes),
		}
	}
}
