// Package youtube wraps the YouTube Data API surface this system needs:
// listing channel uploads, reading video snippets, publishing new metadata,
// uploading thumbnails and replacing caption tracks. All calls run under the
// shared retry policy and map SDK failures onto the services taxonomy.
//
// Authentication is the OAuth2 installed-app flow: a client secret from the
// Google Cloud console plus a cached token that refreshes silently and is
// re-persisted when it rotates.
package youtube
