// Package chatv1 describes the vibehive.chat.v1.MessageService RPC surface.
// Messages are plain structs carried by the JSON codec.
package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "vibehive.chat.v1.MessageService"

const (
	MessageService_Send_FullMethodName          = "/vibehive.chat.v1.MessageService/Send"
	MessageService_History_FullMethodName       = "/vibehive.chat.v1.MessageService/History"
	MessageService_Window_FullMethodName        = "/vibehive.chat.v1.MessageService/Window"
	MessageService_Conversations_FullMethodName = "/vibehive.chat.v1.MessageService/Conversations"
	MessageService_Connect_FullMethodName       = "/vibehive.chat.v1.MessageService/Connect"
)

type MessageServiceServer interface {
	Send(context.Context, *SendRequest) (*SendResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Window(context.Context, *WindowRequest) (*WindowResponse, error)
	Conversations(context.Context, *ConversationsRequest) (*ConversationsResponse, error)
	Connect(*ConnectRequest, MessageService_ConnectServer) error
}

type MessageService_ConnectServer = grpc.ServerStreamingServer[ChatEvent]

// UnimplementedMessageServiceServer can be embedded to keep forward compatibility.
type UnimplementedMessageServiceServer struct{}

func (UnimplementedMessageServiceServer) Send(context.Context, *SendRequest) (*SendResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Send not implemented")
}
func (UnimplementedMessageServiceServer) History(context.Context, *HistoryRequest) (*HistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method History not implemented")
}
func (UnimplementedMessageServiceServer) Window(context.Context, *WindowRequest) (*WindowResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Window not implemented")
}
func (UnimplementedMessageServiceServer) Conversations(context.Context, *ConversationsRequest) (*ConversationsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Conversations not implemented")
}
func (UnimplementedMessageServiceServer) Connect(*ConnectRequest, MessageService_ConnectServer) error {
	return status.Error(codes.Unimplemented, "method Connect not implemented")
}

func RegisterMessageServiceServer(s grpc.ServiceRegistrar, srv MessageServiceServer) {
	s.RegisterService(&MessageService_ServiceDesc, srv)
}

func _MessageService_Send_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SendRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessageServiceServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MessageService_Send_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessageServiceServer).Send(ctx, req.(*SendRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MessageService_History_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessageServiceServer).History(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MessageService_History_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessageServiceServer).History(ctx, req.(*HistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MessageService_Window_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(WindowRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessageServiceServer).Window(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MessageService_Window_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessageServiceServer).Window(ctx, req.(*WindowRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MessageService_Conversations_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ConversationsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MessageServiceServer).Conversations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MessageService_Conversations_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MessageServiceServer).Conversations(ctx, req.(*ConversationsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MessageService_Connect_Handler(srv any, stream grpc.ServerStream) error {
	m := new(ConnectRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(MessageServiceServer).Connect(m, &grpc.GenericServerStream[ConnectRequest, ChatEvent]{ServerStream: stream})
}

var MessageService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: _MessageService_Send_Handler},
		{MethodName: "History", Handler: _MessageService_History_Handler},
		{MethodName: "Window", Handler: _MessageService_Window_Handler},
		{MethodName: "Conversations", Handler: _MessageService_Conversations_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Connect", Handler: _MessageService_Connect_Handler, ServerStreams: true},
	},
	Metadata: "vibehive/chat/v1/message_service",
}
