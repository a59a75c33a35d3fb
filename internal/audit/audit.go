package audit

import (
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/rs/zerolog"
)

// Audit actions for the directory and room servers.
const (
	ActionRoomCreated   = "directory.room_created"
	ActionRoomSelected  = "directory.room_selected"
	ActionMemberJoined  = "room.member_joined"
	ActionMemberLeft    = "room.member_left"
	ActionMemberRenamed = "room.member_renamed"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit entry on the given logger.
func Log(l zerolog.Logger, action string, member string, msg string) {
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldMember, member).
		Msg(msg)
}

// LogWithDetail emits an audit entry with an extra detail field.
func LogWithDetail(l zerolog.Logger, action string, member string, detail string, msg string) {
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldMember, member).
		Str(FieldDetail, detail).
		Msg(msg)
}
