package rate

import "errors"

var (
	// ErrRedisUnavailable is an exported constant or variable used by the bot-mitigation engine.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
