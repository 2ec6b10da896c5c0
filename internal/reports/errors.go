package reports

import "errors"

// ErrUploadDisabled is returned when no object storage is configured.
var ErrUploadDisabled = errors.New("export upload is not configured")
