package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

const brand = "CareLink"

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2c3e50;">Password Reset Request</h2>
  <p>Dear {{.Name}},</p>
  <p>You have requested to reset your password. Please use the following OTP to verify your identity:</p>
  <div style="background-color: #f8f9fa; padding: 20px; text-align: center; margin: 20px 0;">
    <h1 style="color: #007bff; font-size: 32px; margin: 0; letter-spacing: 5px;">{{.OTP}}</h1>
  </div>
  <p>This OTP will expire in <strong>{{.Minutes}} minutes</strong>.</p>
  <p>If you did not request this password reset, please ignore this email.</p>
  <p style="color: #6c757d; font-size: 14px;">{{.Brand}} Team</p>
</div>`))

var prescriptionTemplate = template.Must(template.New("prescription").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>New Prescription Request</h2>
  <p>Received for {{.Provider}}</p>
  <h3>Patient Details</h3>
  <p><strong>Patient Name:</strong> {{.Username}}</p>
  <p><strong>Mobile:</strong> {{.Mobile}}</p>
  <p><strong>Doctor:</strong> {{.Doctor}}</p>
  <p><strong>Date:</strong> {{.Date}}</p>
  <p><strong>Service Type:</strong> {{.ServiceType}}</p>
  {{if .Notes}}<p><strong>Notes:</strong> {{.Notes}}</p>{{end}}
  <p><strong>Request ID:</strong> {{.RequestID}}</p>
  {{if .InlineImage}}<img src="cid:{{.FileName}}" alt="Prescription" style="max-width: 100%;" />
  {{else if .FileName}}<p><strong>Prescription File:</strong> {{.FileName}} ({{.SizeKB}} KB, {{.MimeType}})</p>{{end}}
  <p>Contact the patient at {{.Mobile}} if clarification is needed.</p>
  <p style="color: #6c757d; font-size: 12px;">This is an automated notification. Please do not reply to this email.</p>
</div>`))

// OTPMessage builds the password-reset mail.
func OTPMessage(to, name, otp string, validFor time.Duration) (Message, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, map[string]interface{}{
		"Name":    name,
		"OTP":     otp,
		"Minutes": int(validFor.Minutes()),
		"Brand":   brand,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render otp email: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Password Reset OTP - " + brand,
		HTML:    buf.String(),
	}, nil
}

// PrescriptionDetails is what the provider email shows about a request.
type PrescriptionDetails struct {
	RequestID    string
	ProviderName string
	ServiceType  string
	Username     string
	Mobile       string
	Doctor       string
	Date         time.Time
	Notes        string
	FilePath     string
	FileName     string
	FileSize     int64
	MimeType     string
}

// PrescriptionMessage builds the provider mail. Image prescriptions are
// embedded inline, anything else is attached.
func PrescriptionMessage(to string, d PrescriptionDetails) (Message, error) {
	inline := strings.HasPrefix(d.MimeType, "image/")

	var buf bytes.Buffer
	err := prescriptionTemplate.Execute(&buf, map[string]interface{}{
		"Provider":    d.ProviderName,
		"Username":    d.Username,
		"Mobile":      d.Mobile,
		"Doctor":      d.Doctor,
		"Date":        d.Date.Format("02 Jan 2006"),
		"ServiceType": d.ServiceType,
		"Notes":       d.Notes,
		"RequestID":   d.RequestID,
		"InlineImage": inline && d.FilePath != "",
		"FileName":    d.FileName,
		"SizeKB":      fmt.Sprintf("%.2f", float64(d.FileSize)/1024),
		"MimeType":    d.MimeType,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render prescription email: %w", err)
	}

	msg := Message{
		To:      to,
		Subject: "New Prescription Request - " + d.ProviderName,
		HTML:    buf.String(),
	}
	if d.FilePath != "" {
		msg.Attachments = []Attachment{{Path: d.FilePath, Name: d.FileName, Inline: inline}}
	}
	return msg, nil
}
