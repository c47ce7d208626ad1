// Package ui renders terminal output for the multicontroller CLI.
//
// Components follow a "print once" pattern: a Header names the command and
// its parameters, tables list entities, nodes or discovered bridges, and a
// Result box reports success or failure with troubleshooting tips. The
// interactive dashboard lives in package tui.
//
// Printer writes components to any io.Writer and switches to plain JSON
// with SetJSON, so every command can serve scripts as well as people.
//
// Logging is silent unless MULTICONTROLLER_LOG_LEVEL is set, which keeps
// this output clean.
package ui
