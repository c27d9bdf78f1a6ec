// Package thumbnail renders episode thumbnails: an AI-generated background
// (optionally guided by a channel reference image), scaled to the platform
// canvas, with an episode badge and topic label composited on top and the
// result encoded as JPEG under the platform size cap.
package thumbnail
