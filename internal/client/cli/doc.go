// Package cli is the deaddrop source command-line client.
//
// Without a subcommand it starts an interactive session that mirrors the
// browser flow: generate a codename or log in with one, check status, submit
// messages and documents, delete replies and log out. The session token
// lives only in process memory. One-shot subcommands cover metadata, the
// journalist key and a single submission.
package cli
