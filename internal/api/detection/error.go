package detection

import (
	"net/http"

	"github.com/Sei0217/visually-impaired/pkg/response"
)

var (
	ErrDecodeFailed         = response.NewError(http.StatusBadRequest, "decode_failed")
	ErrEncodeFailed         = response.NewError(http.StatusInternalServerError, "encode_failed")
	ErrMissingImage         = response.NewError(http.StatusBadRequest, "missing_image")
	ErrFileTooLarge         = response.NewError(http.StatusRequestEntityTooLarge, "file_too_large")
	ErrClassIndexOutOfRange = response.NewError(http.StatusInternalServerError, "class_index_out_of_range")
	ErrInternalServerError  = response.NewError(http.StatusInternalServerError, "internal_server_error")
)
