// Package drive binds the Google Drive v3 API for fetching source videos
// and uploading clips. Credentials come from an installed-app OAuth client
// secret plus a token produced by AuthorizeLoopback.
package drive
