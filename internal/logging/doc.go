// Package logging configures structured slog output for archivist.
//
// Logs are JSON lines written to a size-rotated file under ~/.archivist/logs/.
// Interactive commands may mirror them to stderr; the tool server never does,
// because stdout/stderr carry the protocol stream there.
package logging
