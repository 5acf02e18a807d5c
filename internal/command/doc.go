// Package command connects the ingress surfaces to the vehicle executor.
//
// Structured commands go straight to the executor. Text commands are
// parsed, translated onto the action vocabulary and only executed when the
// result names a real action with confidence above the caller's
// threshold. Every executed command is journaled with its source.
package command
