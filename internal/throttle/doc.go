// Package throttle implements the sliding-window login throttle. Failed
// attempts are tracked per email and per client address in Redis sorted
// sets; a check prunes attempts older than the window before counting, and
// a denial carries the time until the oldest attempt slides out.
//
// The limiter fails open: when Redis is unreachable a check allows the
// attempt and reports the error, so an outage degrades to unthrottled
// logins instead of a sitewide lockout.
package throttle
