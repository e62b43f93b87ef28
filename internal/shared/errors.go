package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// Import control errors. These pause the import loop and require an
	// explicit resume from the caller.
	ErrNoConnection     = fmt.Errorf("no network connection")
	ErrAuthToken        = fmt.Errorf("could not obtain a developer token")
	ErrStorefront       = fmt.Errorf("could not resolve storefront")
	ErrPlaylistCreation = fmt.Errorf("destination playlist creation failed")

	// Destination access errors, classified from the destination service's
	// authentication handshake.
	ErrAccessDenied            = fmt.Errorf("media library access denied")
	ErrLibraryDisabled         = fmt.Errorf("cloud music library disabled")
	ErrEligibleForSubscription = fmt.Errorf("eligible for subscription but not subscribed")
	ErrNotSubscribed           = fmt.Errorf("no active subscription")

	// API and service errors
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrSearchFailed     = fmt.Errorf("search request failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTrackNotFound    = fmt.Errorf("track not found")

	// Store invariant violations. Never retried more than once; a repeat is
	// treated as unrecoverable.
	ErrStoreInconsistent = fmt.Errorf("persistent store inconsistency")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
