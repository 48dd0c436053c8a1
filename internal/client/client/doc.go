// Package client talks to the deaddrop source service over gRPC.
//
// GRPCClient keeps the session token issued by the server. Every call sends
// the current token and adopts the successor token returned in the response
// header, so a sequence of calls behaves like a browser session. Status codes
// are mapped to ErrUnavailable, ErrUnauthorized and ErrRejected; the
// server's message is preserved in *Error.
package client
