// Package quote's position-limit resize (see generator.go) only ever
// receives the bot-wide spend cap (config.MaxPositionUSDC). config also
// validates a MaxPositionPerMarket field, but nothing in this package
// consults it — a known, reviewed gap carried over from the source bot
// rather than an oversight.
package quote
