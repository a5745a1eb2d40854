// Package ui renders the console output of long running commands: stage
// banners, the partial failure warning and run summaries. Styling is applied
// only when the output is an interactive terminal.
package ui
