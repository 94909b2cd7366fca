// Package ratelimit paces outbound API traffic.
//
// Every service client shares one token bucket sized from the configured
// requests-per-minute budget, so a long listing run cannot trip the
// upstream limiter no matter how many pages it walks.
package ratelimit
