package domain

import "errors"

var (
	ErrBoardNotFound = errors.New("board not found")
	ErrRoomNotFound  = errors.New("room not found")
	ErrConnNotFound  = errors.New("connection not found")
	ErrPeerNotFound  = errors.New("peer not found")
	ErrLinkClosed    = errors.New("peer link closed")
	ErrNotInVoice    = errors.New("not in voice chat")
)
