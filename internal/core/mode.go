// Package core is the orchestration layer.  It composes the transport,
// the chat core, and the local collaborators (history file, token
// store, console) into complete operational modes, and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  chat  →  history/credentials/console  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of minechat (chat,
// register, or send).  Each mode owns its full lifecycle from
// connection establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
