package errors

// Sentinels for the deployment error kinds. Errors produced by the
// constructors below match them with errors.Is.
var (
	ErrConfigMissing      = ConfigError("required configuration missing").Build()
	ErrInvalidConfig      = ConfigError("invalid configuration").Build()
	ErrFetch              = ForgeError("failed to fetch file content").Build()
	ErrMissingFileContent = TransformError("file has no content").Build()
	ErrUpload             = NetworkError("page upload failed").Build()
	ErrRemoteRejection    = PlatformError("platform rejected page").Build()
)

// ConfigMissing reports a required setting that was not supplied.
func ConfigMissing(field string) *ClassifiedError {
	return ConfigError(ErrConfigMissing.message).
		WithContext("field", field).
		Build()
}

// InvalidConfig reports a setting with an unusable value.
func InvalidConfig(field, reason string) *ClassifiedError {
	return ConfigError(ErrInvalidConfig.message).
		WithContext("field", field).
		WithContext("reason", reason).
		Build()
}

// FetchFailed wraps a content read failure. Not-found and auth
// classifications of the cause are preserved so exit codes stay precise.
func FetchFailed(path string, cause error) *ClassifiedError {
	b := ForgeError(ErrFetch.message).WithCause(cause).WithContext("path", path)
	if c, ok := AsClassified(cause); ok {
		switch c.Category() {
		case CategoryNotFound, CategoryAuth, CategoryNetwork:
			b.category = c.Category()
		}
		b.retry = c.RetryStrategy()
	}
	return b.Build()
}

// MissingFileContent reports a manifest file that decoded to empty text.
func MissingFileContent(filename string) *ClassifiedError {
	return TransformError(ErrMissingFileContent.message).
		WithContext("file", filename).
		Build()
}

// UploadFailed reports a transport-level failure for one page upload.
func UploadFailed(page string, cause error) *ClassifiedError {
	return NetworkError(ErrUpload.message).
		WithCause(cause).
		WithContext("page", page).
		Build()
}

// RemoteRejection reports pages the platform answered with a non-zero error code.
func RemoteRejection(pages []string) *ClassifiedError {
	return PlatformError(ErrRemoteRejection.message).
		WithContext("pages", pages).
		Build()
}
