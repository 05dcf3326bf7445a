package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxImageSize = 5 << 20

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

var uploadLog = logrus.WithField("area", "UPLOAD")

// saveImage stores an uploaded product image under uploadDir/products and
// returns the public URL path ("/uploads/products/<name>").
func saveImage(file *multipart.FileHeader, uploadDir string) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedImageExtensions[extension]; !ok {
		return "", fmt.Errorf("unsupported image type: %s", extension)
	}
	if file.Size > maxImageSize {
		return "", fmt.Errorf("image file too large (max 5MB)")
	}

	filename := uuid.NewString() + extension

	dir := filepath.Join(uploadDir, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		uploadLog.WithError(err).WithField("dir", dir).Error("create upload directory failed")
		return "", err
	}

	fullPath := filepath.Join(dir, filename)
	uploadLog.WithFields(logrus.Fields{"file": filename, "path": fullPath}).Debug("saving image")

	out, err := os.Create(fullPath)
	if err != nil {
		uploadLog.WithError(err).WithField("path", fullPath).Error("create file failed")
		return "", err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		uploadLog.WithError(err).WithField("file", file.Filename).Error("open upload failed")
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		uploadLog.WithError(err).WithField("path", fullPath).Error("write file failed")
		return "", err
	}

	return path.Join("/uploads", "products", filename), nil
}

func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}
