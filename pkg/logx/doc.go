// Package logx configures hora's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Call sites decoupled from the zerolog API (Field funcs)
package logx
