package storage

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"time"
)

// Upload is a file received from a client, detached from the transport.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Ext returns the lower-cased file extension including the dot.
func (u *Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.Filename))
}

var keySuffixMax = big.NewInt(1e9)

// NewKey builds a collision-resistant key of the form
// dir/field-{unix ms}-{random}{ext}.
func NewKey(dir, field, ext string, now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, keySuffixMax)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	name := fmt.Sprintf("%s-%d-%d%s", field, now.UnixMilli(), n.Int64(), ext)
	if dir == "" {
		return name, nil
	}
	return dir + "/" + name, nil
}
