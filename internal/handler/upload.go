package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/carelink-api/pkg/storage"
)

// FormFile opens an optional multipart file. The returned closer must be
// called when the upload is non-nil.
func FormFile(c *gin.Context, field string) (*storage.Upload, io.Closer, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, err
	}
	return &storage.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      f,
	}, f, nil
}
