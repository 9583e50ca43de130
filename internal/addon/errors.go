package addon

import "errors"

var (
	ErrInvalidAddonURL          = errors.New("invalid addon url")
	ErrManifestFetchFailed      = errors.New("manifest fetch failed")
	ErrAddonNotFound            = errors.New("addon not found")
	ErrReservedAddon            = errors.New("built-in addon cannot be modified")
	ErrPerAddonTimeout          = errors.New("addon request timed out")
	ErrReachabilityCheckFailed  = errors.New("reachability check failed")
	ErrPlaybackResolutionFailed = errors.New("playback resolution failed")
)
