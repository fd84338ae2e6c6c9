package form

import (
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	errors "github.com/frahmantamala/attendance/internal"
)

const (
	FieldImage       = "face_image"
	FieldImageBase64 = "face_image_base64"

	// multipart overhead allowed on top of the image cap
	formOverhead = 1 << 20
)

// Parse reads a multipart or urlencoded body capped at maxImage plus form
// overhead.
func Parse(w http.ResponseWriter, r *http.Request, maxImage int64) *errors.AppError {
	r.Body = http.MaxBytesReader(w, r.Body, maxImage*2+formOverhead)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		err = r.ParseMultipartForm(maxImage + formOverhead)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewValidationError(fmt.Sprintf("Image file too large (max %dMB)", maxImage/(1024*1024)), errors.ErrCodeImageTooLarge)
		}
		return errors.NewValidationError("Invalid form data", errors.ErrCodeValidationFailed)
	}
	return nil
}

// Float reads a required numeric form field.
func Float(r *http.Request, field string) (float64, *errors.AppError) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, errors.NewValidationFieldError(field, field+" is required", errors.ErrCodeValidationFailed)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.NewValidationFieldError(field, field+" must be a number", errors.ErrCodeValidationFailed)
	}
	return v, nil
}

// Image returns the uploaded face image, preferring the file part over the
// base64 field. At most maxImage+1 bytes are read so oversize uploads are
// still detected downstream.
func Image(r *http.Request, maxImage int64) ([]byte, *errors.AppError) {
	if r.MultipartForm != nil {
		if file, _, err := r.FormFile(FieldImage); err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxImage+1))
			if err != nil {
				return nil, errors.NewValidationError("Invalid image file", errors.ErrCodeInvalidImage)
			}
			if len(data) > 0 {
				return data, nil
			}
		}
	}

	if encoded := r.FormValue(FieldImageBase64); encoded != "" {
		return DecodeBase64Image(encoded)
	}
	return nil, errors.NewValidationError("No face image provided", errors.ErrCodeMissingImage)
}

// DecodeBase64Image accepts raw base64 or a data URI. Whitespace and line
// breaks inside the payload are ignored.
func DecodeBase64Image(encoded string) ([]byte, *errors.AppError) {
	if i := strings.Index(encoded, ","); i >= 0 {
		encoded = encoded[i+1:]
	}
	encoded = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		return nil, errors.NewValidationError("Invalid base64 image data", errors.ErrCodeInvalidImage)
	}
	return data, nil
}
