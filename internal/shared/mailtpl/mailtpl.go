// Package mailtpl renders the verification code email shared by the direct
// mail notifier and the notification consumer.
package mailtpl

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

const OTPSubject = "Your verification code"

//go:embed otp.html otp.txt
var files embed.FS

var (
	otpHTML = htmltemplate.Must(htmltemplate.New("otp.html").Option("missingkey=zero").ParseFS(files, "otp.html"))
	otpText = texttemplate.Must(texttemplate.New("otp.txt").Option("missingkey=zero").ParseFS(files, "otp.txt"))
)

type profileCopy struct {
	subject string
	intro   string
}

// copies is keyed by profile; unknown profiles use the unscoped entry.
var copies = map[string]profileCopy{
	"":         {subject: OTPSubject, intro: "Use the code below to continue."},
	"customer": {subject: OTPSubject, intro: "Use the code below to sign in to your account."},
	"merchant": {subject: "Your merchant verification code", intro: "Use the code below to sign in to your merchant dashboard."},
	"delivery": {subject: "Your delivery partner verification code", intro: "Use the code below to sign in to the delivery partner app."},
}

type OTPData struct {
	Email string
	// Profile selects the subject and opening line, e.g. "merchant".
	Profile      string
	Code         string
	MinutesValid int
	AppName      string
	SupportEmail string
	Year         string
}

// MinutesValid rounds ttl up to whole minutes for display, never below one.
func MinutesValid(ttl time.Duration) int {
	return max(int((ttl+time.Minute-1)/time.Minute), 1)
}

// Subject returns the subject line used for profile.
func Subject(profile string) string {
	return copyFor(profile).subject
}

func copyFor(profile string) profileCopy {
	if c, ok := copies[profile]; ok {
		return c
	}
	return copies[""]
}

// OTP renders the message for d. The sender is left to the mail client.
func OTP(d OTPData) (mail.Message, error) {
	c := copyFor(d.Profile)
	view := struct {
		OTPData
		Subject string
		Intro   string
	}{OTPData: d, Subject: c.subject, Intro: c.intro}

	var htmlBuf, textBuf bytes.Buffer
	if err := otpHTML.Execute(&htmlBuf, view); err != nil {
		return mail.Message{}, err
	}
	if err := otpText.Execute(&textBuf, view); err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		To:       []string{d.Email},
		Subject:  c.subject,
		TextBody: textBuf.String(),
		HTMLBody: htmlBuf.String(),
	}, nil
}
