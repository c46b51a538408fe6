package purchase

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrVerificationFailed   = errors.New("transaction verification failed")
	ErrPending              = errors.New("purchase pending approval")
	ErrCancelled            = errors.New("purchase cancelled")
	ErrUnknown              = errors.New("unknown purchase result")
	ErrNoPurchasesToRestore = errors.New("no purchases to restore")
)

// UserMessage renders err for display after a purchase or restore attempt.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProductNotFound):
		return "Products could not be loaded. Please check your internet connection and try again."
	case errors.Is(err, ErrVerificationFailed):
		return "Purchase verification failed. Please contact support."
	case errors.Is(err, ErrPending):
		return "Your purchase is pending approval. Credits will be added once approved."
	case errors.Is(err, ErrCancelled):
		return "Purchase was cancelled."
	case errors.Is(err, ErrNoPurchasesToRestore):
		return "No previous purchases found to restore."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
