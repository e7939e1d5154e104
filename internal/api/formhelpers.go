package api

import (
	"mime/multipart"
	"strconv"

	"github.com/gin-gonic/gin"
)

func getFormBoolWithDefault(c *gin.Context, key string, defaultValue bool) bool {
	if value := c.PostForm(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getFormIntPtr(c *gin.Context, key string) *int {
	value := c.PostForm(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}
	return &n
}

// openUpload opens the named multipart field, returning (nil, "", nil)
// if the field was not provided at all so callers can distinguish "no
// upload" from "upload failed to open".
func openUpload(c *gin.Context, field string) (multipart.File, string, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, "", nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	return file, header.Filename, nil
}
