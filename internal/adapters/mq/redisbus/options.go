package redisbus

import "github.com/okian/gigbook/pkg/logger"

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithChannel sets the pub/sub channel name.
func WithChannel(channel string) Option {
	return func(b *Bus) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithOrigin sets the id stamped on outgoing messages.
func WithOrigin(origin string) Option {
	return func(b *Bus) {
		if origin != "" {
			b.origin = origin
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}
