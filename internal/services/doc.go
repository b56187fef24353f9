// Package services wraps the platform's REST resources. Every service is a
// thin layer over apiclient.Client: it shapes paths, parameters and payloads
// and passes the client's classified errors through untouched.
package services
