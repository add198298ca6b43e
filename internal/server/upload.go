package server

import (
	"fmt"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// uploadedFile is an opened multipart photo
type uploadedFile struct {
	multipart.File
	name string
	size int64
}

func openUpload(c *gin.Context, field string) (*uploadedFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: form file %s: %v", types.ErrMissingInput, field, err)
	}
	if header.Size == 0 {
		return nil, fmt.Errorf("%w: form file %s is empty", types.ErrInvalidInput, field)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open form file %s: %w", field, err)
	}
	return &uploadedFile{File: f, name: header.Filename, size: header.Size}, nil
}
