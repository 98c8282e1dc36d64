// Package ui implements the live job dashboard using bubbletea's Elm architecture.
//
// The [Model] subscribes to the realtime client's update stream and renders
// one row per watched job: a bubbles progress bar, status badge, video
// counters, and the latest server message. A status line shows the channel's
// connection and auth state, including reconnect-in-progress, and surfaces
// transient gap-recovery failures.
//
// The dashboard is read-only; the only key bindings are quit (q/ctrl+c) and
// help toggling via charmbracelet/bubbles/help.
package ui
