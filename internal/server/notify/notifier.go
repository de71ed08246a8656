package notify

import (
	"context"
	"fmt"
	"html"
)

const (
	otpSubject      = "Password Reset OTP Code"
	passwordSubject = "Your New Password is sent by Patronik"
)

// EmailNotifier renders account emails and hands them to a Sender.
type EmailNotifier struct {
	sender Sender
	from   string
}

func NewEmailNotifier(sender Sender, from string) *EmailNotifier {
	return &EmailNotifier{sender: sender, from: from}
}

// SendOTP mails a password reset code.
func (n *EmailNotifier) SendOTP(ctx context.Context, email, code string) error {
	return n.sender.Send(ctx, Message{
		From:    n.from,
		To:      email,
		Subject: otpSubject,
		Text:    fmt.Sprintf("Your OTP code is: %s (expires in 5 minutes)", code),
		HTML:    fmt.Sprintf("<p>Your OTP code is: <b>%s</b> (expires in 5 minutes)</p>", html.EscapeString(code)),
	})
}

// SendGeneratedPassword mails the password created for a Google account.
func (n *EmailNotifier) SendGeneratedPassword(ctx context.Context, email, password string) error {
	return n.sender.Send(ctx, Message{
		From:    n.from,
		To:      email,
		Subject: passwordSubject,
		Text:    fmt.Sprintf("Your password is: %s", password),
		HTML:    fmt.Sprintf("<p>Your password is: <b>%s</b> </p>", html.EscapeString(password)),
	})
}
