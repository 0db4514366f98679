package grpcx

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cwrk-planet/chat-service/internal/persist"
	"github.com/cwrk-planet/chat-service/internal/realtime"
)

const presenceServiceName = "chat.v1.Presence"

type Presence interface {
	Participants(roomID string) []realtime.Member
	Stats() realtime.Stats
}

type PersistStats interface {
	Stats() persist.Stats
}

// PresenceServer is the server API for chat.v1.Presence. Messages are
// well-known types so no generated code is needed.
type PresenceServer interface {
	ListParticipants(ctx context.Context, roomID *wrapperspb.StringValue) (*structpb.Struct, error)
	Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error)
}

type PresenceService struct {
	presence Presence
	persist  PersistStats
}

func NewPresenceService(p Presence, stats PersistStats) *PresenceService {
	return &PresenceService{presence: p, persist: stats}
}

func (s *PresenceService) ListParticipants(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	roomID := in.GetValue()
	if roomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room id is required")
	}

	members := s.presence.Participants(roomID)
	items := make([]any, 0, len(members))
	for _, m := range members {
		items = append(items, map[string]any{
			"userId":    m.Identity.ID,
			"firstName": m.Identity.FirstName,
			"lastName":  m.Identity.LastName,
			"joinedAt":  m.JoinedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"roomId":       roomID,
		"participants": items,
	})
	return out, statusFromErr(err)
}

func (s *PresenceService) Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	hs := s.presence.Stats()
	fields := map[string]any{
		"sessions":    hs.Sessions,
		"connections": hs.Connections,
		"rooms":       hs.Rooms,
		"members":     hs.Members,
	}
	if s.persist != nil {
		ps := s.persist.Stats()
		fields["persistence"] = map[string]any{
			"enqueued":  ps.Enqueued,
			"appended":  ps.Appended,
			"readMarks": ps.ReadMarks,
			"failed":    ps.Failed,
			"dropped":   ps.Dropped,
		}
	}
	out, err := structpb.NewStruct(fields)
	return out, statusFromErr(err)
}

func RegisterPresenceServer(s grpc.ServiceRegistrar, srv PresenceServer) {
	s.RegisterService(&presenceServiceDesc, srv)
}

func listParticipantsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServer).ListParticipants(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + presenceServiceName + "/ListParticipants"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).ListParticipants(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PresenceServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + presenceServiceName + "/Stats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PresenceServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var presenceServiceDesc = grpc.ServiceDesc{
	ServiceName: presenceServiceName,
	HandlerType: (*PresenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListParticipants", Handler: listParticipantsHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/presence.proto",
}
