package room

import (
	"context"
	"strings"

	"github.com/qwb00/ChatApp/internal/audit"
	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/pkg/log"
	"github.com/qwb00/ChatApp/pkg/pubsub"
)

// handleCommand dispatches a COMMAND payload on its prefix.
func (s *Server) handleCommand(ctx context.Context, m *member, payload string) {
	cmd := strings.TrimSpace(payload)

	switch {
	case cmd == domain.CommandRename || strings.HasPrefix(cmd, domain.CommandRename+" "):
		s.handleRename(ctx, m, strings.TrimSpace(strings.TrimPrefix(cmd, domain.CommandRename)))
	case cmd == domain.CommandList:
		s.reply(ctx, m, domain.NewMessage(domain.MsgTypeUserList, strings.Join(s.Members(), ", ")))
	case cmd == domain.CommandHelp:
		s.reply(ctx, m, domain.NewMessage(domain.MsgTypeHelpMessage, domain.HelpText))
	default:
		s.reply(ctx, m, domain.NewErrorMessage(domain.ReasonUnknownCommand))
	}
}

func (s *Server) handleRename(ctx context.Context, m *member, newName string) {
	oldName, ok := s.rename(m, newName)
	if !ok {
		s.reply(ctx, m, domain.NewErrorMessage(domain.ReasonInvalidNickname))
		return
	}

	l := log.Ctx(ctx)
	audit.LogWithDetail(l, audit.ActionMemberRenamed, newName, oldName, "member renamed")

	s.broadcast(ctx, domain.Message{
		Type:    domain.MsgTypeNicknameChanged,
		Payload: oldName + " changed nickname to " + newName,
		Sender:  newName,
	})
	s.publish(ctx, pubsub.EventMemberRenamed, pubsub.RenamePayload{From: oldName, To: newName})
}
