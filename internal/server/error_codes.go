package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument  = 1000
	ErrCodeInvalidJSON      = 1001
	ErrCodeRequestTooLarge  = 1002
	ErrCodeInvalidID        = 1004
	ErrCodeMissingRequired  = 1009
	ErrCodeInvalidURL       = 1010
	ErrCodeUnsupportedMedia = 1011
	ErrCodeInvalidMultipart = 1012

	// Domain state (2xxx)
	ErrCodeFileNotFound = 2001
	ErrCodeJobNotFound  = 2002

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = 4002
	ErrCodeMediaFailure = 4003
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeFileNotFound
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
