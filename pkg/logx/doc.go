// Package logx is a thin structured logging layer over zerolog.
//
// It exists so the rest of the codebase never imports zerolog directly:
// components take a logx.Logger value and emit fields via the helpers in
// this package. The Service owns the sinks (console, JSON file, optional
// Telegram mirror) and can swap them at runtime when the config reloads
// without invalidating loggers already handed out.
package logx
