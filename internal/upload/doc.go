// Package upload accepts a single image per multipart request and hands it
// to a Storage backend.
//
// Only the "image" field is considered. Files whose declared type is not on
// the allow-list, or whose name does not reduce to a safe base name, are
// rejected without error: the request carries on with no file attached.
// Storage failures are errors.
package upload
