package mail

import "strings"

const verificationTemplate = `
<p>Thanks for signing up for WatchClub.</p>
<p>Your verification code is:</p>
<h2>{code}</h2>
<p>The code expires in 10 minutes.</p>
`

const welcomeTemplate = `
<p>Hi {fullName},</p>
<p>Your email is verified. Create a group, share its join code with your
friends, and start posting videos.</p>
`

const passwordResetTemplate = `
<p>We received a request to reset your password.</p>
<p><a href="{resetURL}">Reset your password</a></p>
<p>The link expires in 10 minutes. If you did not request this, you can
ignore this email.</p>
`

const resetSuccessTemplate = `
<p>Your WatchClub password was changed successfully.</p>
<p>If this wasn't you, reset your password again immediately.</p>
`

const invitationTemplate = `
<p>{senderName} invited you to join the group <strong>{groupName}</strong>
on WatchClub.</p>
<p>Use this code on the join form:</p>
<h2>{code}</h2>
`

func renderVerification(code string) string {
	return strings.ReplaceAll(verificationTemplate, "{code}", code)
}

func renderWelcome(fullName string) string {
	return strings.ReplaceAll(welcomeTemplate, "{fullName}", fullName)
}

func renderPasswordReset(resetURL string) string {
	return strings.ReplaceAll(passwordResetTemplate, "{resetURL}", resetURL)
}

func renderResetSuccess() string {
	return resetSuccessTemplate
}

func renderInvitation(code, senderName, groupName string) string {
	r := strings.NewReplacer("{code}", code, "{senderName}", senderName, "{groupName}", groupName)
	return r.Replace(invitationTemplate)
}
