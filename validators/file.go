package validators

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/viper"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileNameTooLong = errors.New("file name is too long")
	ErrFileNameInvalid = errors.New("file name contains invalid characters")
	ErrNoFile          = errors.New("no file provided")
)

const maxFileNameSize = 255

// FileValidator checks one multipart file against the upload limits and
// sniffs its mime type from content, falling back to the client header only
// when detection fails. Returns the detected mime and an open handle
// rewound to the start.
func FileValidator(fh *multipart.FileHeader) (code int, mime string, f multipart.File, err error) {
	if fh == nil {
		return http.StatusBadRequest, "", nil, ErrNoFile
	}

	if len(fh.Filename) > maxFileNameSize {
		return http.StatusBadRequest, "", nil, ErrFileNameTooLong
	}

	// Path separators in an upload name are always hostile
	if strings.ContainsAny(fh.Filename, "/\\\x00") {
		return http.StatusBadRequest, "", nil, ErrFileNameInvalid
	}

	if fh.Size > viper.GetInt64("upload.max_size") {
		return http.StatusRequestEntityTooLarge, "", nil, ErrFileTooLarge
	}

	f, err = fh.Open()
	if err != nil {
		return http.StatusInternalServerError, "", nil, err
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return http.StatusInternalServerError, "", nil, err
	}

	mime = mt.String()
	if mime == "" {
		mime = fh.Header.Get("Content-Type")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return http.StatusInternalServerError, "", nil, err
	}

	return 0, mime, f, nil
}
