// Package client is the consumer side of the auth API.
//
// [Client] performs the HTTP calls and keeps the session cookie in a cookie
// jar. [Store] mirrors the session for a UI layer: the current user, whether
// a call is in flight, and the last error or confirmation message.
package client
