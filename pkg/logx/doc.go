// Package logx provides the structured logging facade used across shoutbox.
//
// It wraps zerolog behind a small Logger type whose sinks (console, file)
// and level can be swapped at runtime via Service.Apply without invalidating
// loggers already handed out to components.
package logx
