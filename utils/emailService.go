package utils

import (
	"edumart/config"
	"fmt"
	"net/smtp"
)

// SendEmail sends an HTML email through the configured SMTP account
func SendEmail(to []string, subject string, htmlBody string) error {
	smtpHost := "smtp.gmail.com"
	smtpPort := "587"

	from := config.AppConfig.EmailSender
	password := config.AppConfig.Password // App password

	header := fmt.Sprintf("Subject: %s\nMIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n", subject)
	message := []byte(header + htmlBody)

	auth := smtp.PlainAuth("", from, password, smtpHost)

	return smtp.SendMail(smtpHost+":"+smtpPort, auth, from, to, message)
}

// SendEnrollmentEmail sends an email notification when user enrolls in a course
func SendEnrollmentEmail(email, userName, courseName string) error {
	body := fmt.Sprintf(`
		<html>
			<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
				<div style="max-width: 600px; margin: auto; background-color: #ffffff; border-radius: 8px; padding: 30px; box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1);">
					<h2 style="color: #333333; text-align: center;">🎉 Enrollment Successful!</h2>
					<p style="font-size: 16px; color: #555555;">Dear %s,</p>
					<p style="font-size: 16px; color: #555555;">Congratulations! You have successfully enrolled in:</p>
					<h3 style="text-align: center; color: #4CAF50; margin: 20px 0;">%s</h3>
					<p style="font-size: 14px; color: #666666;">You can now access all the course content and start learning. Track your progress and complete all lessons at your own pace.</p>
					<p style="font-size: 14px; color: #999999; text-align: center; margin-top: 30px;">Happy Learning!</p>
					<p style="text-align: center; font-size: 12px; color: #bbbbbb; margin-top: 20px;">EduMart Team</p>
				</div>
			</body>
		</html>
	`, userName, courseName)

	return SendEmail([]string{email}, "Course Enrollment Confirmation - EduMart", body)
}

// SendSubscriptionExpiredEmail notifies a user that their subscription lapsed
func SendSubscriptionExpiredEmail(email, userName string) error {
	body := fmt.Sprintf(`
		<html>
			<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
				<div style="max-width: 600px; margin: auto; background-color: #ffffff; border-radius: 8px; padding: 30px; box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1);">
					<h2 style="color: #333333; text-align: center;">Subscription Expired</h2>
					<p style="font-size: 16px; color: #555555;">Dear %s,</p>
					<p style="font-size: 16px; color: #555555;">Your EduMart subscription has ended. Renew anytime to keep unlimited access to the course library.</p>
					<p style="text-align: center; font-size: 12px; color: #bbbbbb; margin-top: 20px;">EduMart Team</p>
				</div>
			</body>
		</html>
	`, userName)

	return SendEmail([]string{email}, "Subscription Expired - EduMart", body)
}
