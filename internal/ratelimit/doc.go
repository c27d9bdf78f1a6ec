// Package ratelimit paces outbound generation API calls. Text and image
// requests get separate limiters because their quotas differ.
package ratelimit
