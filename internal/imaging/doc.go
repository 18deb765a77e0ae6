// Package imaging is the pixel layer of the release pipeline.
//
// It loads and saves images, caches decoded sources for the duration of a release,
// and provides the pixel operations that the transformation catalog does not get
// directly from github.com/disintegration/imaging: hue rotation, histogram
// equalization, seeded noise, horizontal shear, annotation outlines and preview
// encoding.
//
// # Coordinate System
//
// All operations work with standard Go image.Image types. (0,0) is the top-left
// corner, X increases rightward and Y increases downward. Every function returns
// images whose bounds start at (0,0).
//
// # Thread Safety
//
// ImageCache and Codec are safe for concurrent use. Pixel operations never mutate
// their input and can run concurrently on the same source image.
//
// # Formats
//
// Decoding supports PNG, JPEG, GIF, BMP, TIFF and WebP. Encoding supports PNG, JPEG,
// GIF, BMP, TIFF and lossless WebP. Sources in any other format are re-encoded
// as PNG; the returned path carries the real extension.
//
// # Error Handling
//
// Functions return errors for:
//   - Unreadable or undecodable files (wrapped with apperr.KindIO by Codec)
//   - Unknown output formats
//   - Invalid regions (x1 >= x2 or y1 >= y2, or outside the image)
package imaging
