// Package cache provisions the Redis instance the application uses for
// caching and sessions: authentication in the server config plus a verified
// authenticated round-trip.
package cache
