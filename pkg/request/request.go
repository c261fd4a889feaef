// Package request provides the mutable, chainable definition of one pending HTTP request, see the New function.
//
// A Config is composed by the Compose method (or one of the Get, Post, Head, Put, Delete, Patch, Options, File shortcuts),
// which builds the final target URL from the Endpoint prefix, the relative path and the route segments,
// and applies the method-specific body/query handling.
//
// Requests are executed by the client.Client, singly by Execute or concurrently by ExecuteBatch.
//
// The package also contains the byte-level helpers used during composition:
// EncodeURL (partial percent-encoding), BuildQuery (RFC 3986 query string) and BuildMultipart (multipart/form-data body).
package request
