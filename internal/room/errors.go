package room

import "errors"

var (
	ErrCodeExhausted  = errors.New("room: no codes available")
	ErrRoomNotFound   = errors.New("room: not found")
	ErrGameInProgress = errors.New("room: game already in progress")
	ErrRoomFull       = errors.New("room: full")
	ErrNameTaken      = errors.New("room: name already taken")
	ErrNotHost        = errors.New("room: requester is not the host")
)
