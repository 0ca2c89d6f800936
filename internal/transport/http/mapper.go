package http

import (
	"context"
	"encoding/json"

	"github.com/cospace/cospace-server/internal/core"
	"github.com/cospace/cospace-server/internal/proto"
)

// dispatch maps one inbound message onto the matching engine operation.
// A returned CoreError is reported to the client; it never tears the
// connection down.
func dispatch(ctx context.Context, engine *core.Engine, client *core.Client, inbound proto.Inbound) *core.CoreError {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var data proto.RoomData
		if cerr := unmarshalData(inbound.Data, &data); cerr != nil {
			return cerr
		}
		if data.Room == "" {
			return badRequest("room is required")
		}
		return engine.JoinRoom(ctx, client, data.Room)

	case proto.InboundTypeLeaveRoom:
		var data proto.RoomData
		if cerr := unmarshalData(inbound.Data, &data); cerr != nil {
			return cerr
		}
		if data.Room == "" {
			return badRequest("room is required")
		}
		return engine.LeaveRoom(client, data.Room)

	case proto.InboundTypeAcquireLock:
		var data proto.ContentData
		if cerr := requireContent(inbound.Data, &data); cerr != nil {
			return cerr
		}
		return engine.AcquireLock(ctx, client, data.Room, data.Content)

	case proto.InboundTypeReleaseLock:
		var data proto.ContentData
		if cerr := requireContent(inbound.Data, &data); cerr != nil {
			return cerr
		}
		return engine.ReleaseLock(client, data.Room, data.Content)

	case proto.InboundTypeSubmitEdit:
		var data proto.EditData
		if cerr := unmarshalData(inbound.Data, &data); cerr != nil {
			return cerr
		}
		if data.Room == "" || data.Content == "" {
			return badRequest("room and content are required")
		}
		if len(data.Payload) == 0 {
			return badRequest("payload is required")
		}
		return engine.SubmitEdit(client, data.Room, data.Content, data.Payload)

	case proto.InboundTypeCursor:
		var data proto.CursorData
		if cerr := unmarshalData(inbound.Data, &data); cerr != nil {
			return cerr
		}
		if data.Room == "" || data.Content == "" {
			return badRequest("room and content are required")
		}
		return engine.CursorUpdate(client, data.Room, data.Content, data.Position)

	case proto.InboundTypeTypingStart:
		var data proto.ContentData
		if cerr := requireContent(inbound.Data, &data); cerr != nil {
			return cerr
		}
		return engine.SetTyping(client, data.Room, data.Content, true)

	case proto.InboundTypeTypingStop:
		var data proto.ContentData
		if cerr := requireContent(inbound.Data, &data); cerr != nil {
			return cerr
		}
		return engine.SetTyping(client, data.Room, data.Content, false)

	default:
		return badRequest("unknown message type")
	}
}

func unmarshalData(raw json.RawMessage, v any) *core.CoreError {
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest("malformed message data")
	}
	return nil
}

func requireContent(raw json.RawMessage, data *proto.ContentData) *core.CoreError {
	if cerr := unmarshalData(raw, data); cerr != nil {
		return cerr
	}
	if data.Room == "" || data.Content == "" {
		return badRequest("room and content are required")
	}
	return nil
}

func badRequest(msg string) *core.CoreError {
	return &core.CoreError{Kind: core.KindValidation, Code: core.ErrCodeBadRequest, Message: msg}
}

// outboundFromEvent converts an engine event to its wire form.
func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventRoomJoined:
		members := make([]proto.Member, 0, len(ev.Members))
		for _, m := range ev.Members {
			members = append(members, protoMember(m))
		}
		return proto.Outbound{Type: proto.OutboundTypeRoomJoined, Data: proto.RoomJoinedData{
			Room:    ev.Room,
			Members: members,
			TS:      ev.At.UnixMilli(),
		}}
	case core.EventMemberJoined:
		return proto.Outbound{Type: proto.OutboundTypeMemberJoined, Data: proto.MemberEventData{
			Room: ev.Room,
			User: protoMember(ev.User),
			TS:   ev.At.UnixMilli(),
		}}
	case core.EventMemberLeft:
		return proto.Outbound{Type: proto.OutboundTypeMemberLeft, Data: proto.MemberEventData{
			Room: ev.Room,
			User: protoMember(ev.User),
			TS:   ev.At.UnixMilli(),
		}}
	case core.EventLockGranted:
		return proto.Outbound{Type: proto.OutboundTypeLockGranted, Data: proto.LockGrantedData{
			Room:      ev.Room,
			Content:   ev.Content,
			ExpiresAt: ev.Expires.UnixMilli(),
		}}
	case core.EventLockDenied:
		return proto.Outbound{Type: proto.OutboundTypeLockDenied, Data: proto.LockDeniedData{
			Room:    ev.Room,
			Content: ev.Content,
			HeldBy:  protoMemberPtr(ev.Holder),
		}}
	case core.EventLockReleased:
		return proto.Outbound{Type: proto.OutboundTypeLockReleased, Data: proto.LockReleasedData{
			Room:    ev.Room,
			Content: ev.Content,
			HeldBy:  protoMemberPtr(ev.Holder),
			Reason:  ev.Reason,
		}}
	case core.EventContentUpdated:
		return proto.Outbound{Type: proto.OutboundTypeContentUpdated, Data: proto.ContentUpdatedData{
			Room:     ev.Room,
			Content:  ev.Content,
			EditedBy: protoMember(ev.User),
			Payload:  ev.Payload,
			TS:       ev.At.UnixMilli(),
		}}
	case core.EventPersistFailed:
		return proto.Outbound{Type: proto.OutboundTypePersistFailed, Data: proto.PersistFailedData{
			Room:    ev.Room,
			Content: ev.Content,
			Reason:  ev.Reason,
		}}
	case core.EventCursorUpdated:
		return proto.Outbound{Type: proto.OutboundTypeCursorUpdated, Data: proto.CursorUpdatedData{
			Room:     ev.Room,
			Content:  ev.Content,
			User:     protoMember(ev.User),
			Position: ev.Position,
		}}
	case core.EventTypingChanged:
		return proto.Outbound{Type: proto.OutboundTypeTypingChanged, Data: proto.TypingChangedData{
			Room:     ev.Room,
			Content:  ev.Content,
			User:     protoMember(ev.User),
			IsTyping: ev.IsTyping,
		}}
	case core.EventError:
		return errorOutbound(ev.Error)
	default:
		return errorOutbound(&core.CoreError{
			Kind:    core.KindValidation,
			Code:    core.ErrCodeBadRequest,
			Message: "unknown event",
		})
	}
}

func errorOutbound(cerr *core.CoreError) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{
		Kind: string(cerr.Kind),
		Code: cerr.Code,
		Msg:  cerr.Message,
	}}
}

func protoMember(m core.Member) proto.Member {
	return proto.Member{UserID: m.UserID, Name: m.DisplayName}
}

func protoMemberPtr(m *core.Member) proto.Member {
	if m == nil {
		return proto.Member{}
	}
	return protoMember(*m)
}
