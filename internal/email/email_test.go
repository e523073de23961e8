package email

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

func TestSendBuildsMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rx.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	d := &captureDialer{}
	svc := &SMTPService{from: "no-reply@carelink.local", dialer: d}

	err := svc.Send(context.Background(), Message{
		To:          "lab@example.com",
		Subject:     "New Prescription Request - City Lab",
		HTML:        "<p>hi</p>",
		Attachments: []Attachment{{Path: path, Name: "prescription.pdf"}},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"lab@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"New Prescription Request - City Lab"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `filename="prescription.pdf"`)
}

func TestSendWrapsDialError(t *testing.T) {
	svc := &SMTPService{from: "x@y.z", dialer: &captureDialer{err: errors.New("connection refused")}}
	err := svc.Send(context.Background(), Message{To: "a@b.c", Subject: "s", HTML: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a@b.c")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	d := &captureDialer{}
	svc := &SMTPService{dialer: d}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
	assert.Empty(t, d.sent)
}

func TestOTPMessage(t *testing.T) {
	msg, err := OTPMessage("p@example.com", "Asha", "123456", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Password Reset OTP - CareLink", msg.Subject)
	assert.Contains(t, msg.HTML, "123456")
	assert.Contains(t, msg.HTML, "10 minutes")
	assert.Contains(t, msg.HTML, "Dear Asha")
}

func TestPrescriptionMessageEmbedsImages(t *testing.T) {
	msg, err := PrescriptionMessage("pharmacy@example.com", PrescriptionDetails{
		RequestID:    "r-1",
		ProviderName: "Good Pharmacy",
		ServiceType:  "Pharmacy",
		Username:     "Asha",
		Mobile:       "9876543210",
		Date:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		FilePath:     "/tmp/rx.png",
		FileName:     "rx.png",
		FileSize:     2048,
		MimeType:     "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Prescription Request - Good Pharmacy", msg.Subject)
	assert.Contains(t, msg.HTML, "cid:rx.png")
	require.Len(t, msg.Attachments, 1)
	assert.True(t, msg.Attachments[0].Inline)

	msg, err = PrescriptionMessage("lab@example.com", PrescriptionDetails{
		ProviderName: "City Lab", FilePath: "/tmp/rx.pdf", FileName: "rx.pdf", FileSize: 1024, MimeType: "application/pdf",
	})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "1.00 KB")
	assert.False(t, msg.Attachments[0].Inline)
}
