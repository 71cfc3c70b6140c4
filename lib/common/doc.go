// Package common holds what the objectis library and the CLI share: the
// ClientConfig and the logging setup.
//
// Logging uses the logger package of dragonboat as a small logging facade.
// Every package declares its logger once with logger.GetLogger("<name>").
// InitLoggers installs a factory producing loggers with the layout
//
//	2025/01/02 15:04:05 DEBUG | batch           | message
//
// and applies the configured level to all loggers listed in LoggerNames.
// Until InitLoggers is called dragonboat's default logger is used.
package common
