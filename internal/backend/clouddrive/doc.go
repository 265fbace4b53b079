// Package clouddrive implements the offline-queue transfer backend against
// a CloudDrive2 server.
//
// CloudDrive2 exposes its gRPC services over HTTP as JSON posts to
// /{service}/{method}. The server's method surface has shifted across
// releases, so every logical operation carries an ordered list of candidate
// paths; a path answering with a not-found/method-not-supported status makes
// the client retry the same operation on the next candidate. That routing
// fallback is separate from the credential retry, which lives in Session.
package clouddrive
