// Command clipforge is the operator CLI for the ClipForge session
// store. It opens the configured backend directly, so it works with or
// without a running daemon; concurrent access to the SQLite store is
// safe through WAL mode and busy retries.
package main
