// Package session holds the authentication state shared by the API client:
// a token source view over the credential store and the termination
// broadcaster that announces the end of a session.
//
// The credential store owns token values. The refresh coordinator and the
// top-level login/logout flows are the only writers; everything else reads
// through TokenSource.
package session
