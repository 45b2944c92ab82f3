package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgBuildComplete
	MsgPlayerNotice
)

type buildComplete struct {
	result *tasks.BuildResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// buildCompleteMsg is the constructor for [MsgBuildComplete]
func buildCompleteMsg(result *tasks.BuildResult, err error) Msg {
	return Msg{kind: MsgBuildComplete, data: buildComplete{result, err}}
}

// playerNoticeMsg is the constructor for [MsgPlayerNotice]
func playerNoticeMsg(n player.Notice) Msg {
	return Msg{kind: MsgPlayerNotice, data: n}
}
