package server

import (
	"context"
	"fmt"
	"log/slog"

	"vibehive/auth"
	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/errors"
	"vibehive/infrastructure/grpc/chatv1"
	"vibehive/projection"
	"vibehive/services"

	"github.com/samber/lo"
	"google.golang.org/grpc/metadata"
)

type MessageServer struct {
	chatv1.UnimplementedMessageServiceServer
	log                  *slog.Logger
	chatService          services.IChatService
	connectionBufferSize int
}

func NewMessageServer(log *slog.Logger, chatService services.IChatService, connectionBufferSize int) *MessageServer {
	return &MessageServer{log: log, chatService: chatService, connectionBufferSize: connectionBufferSize}
}

// Send persists and broadcasts one message. When the call is authenticated the
// sender defaults to the caller and may not be anyone else.
func (s *MessageServer) Send(ctx context.Context, req *chatv1.SendRequest) (*chatv1.SendResponse, error) {
	sender, err := callerAs(ctx, domain.ParticipantID(req.Sender))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	receipt, err := s.chatService.Send(ctx, domain.SendIntent{
		RequestID: req.RequestID,
		Sender:    sender,
		Receiver:  domain.ParticipantID(req.Receiver),
		Content:   req.Content,
	})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.SendResponse{
		Message:             event.NewMessagePayload(receipt.Message),
		DeliveredToReceiver: receipt.DeliveredToReceiver,
		DeliveredToSender:   receipt.DeliveredToSender,
	}, nil
}

func (s *MessageServer) History(ctx context.Context, req *chatv1.HistoryRequest) (*chatv1.HistoryResponse, error) {
	viewer, err := callerAs(ctx, domain.ParticipantID(req.A))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	messages, err := s.chatService.History(ctx, viewer, domain.ParticipantID(req.B))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.HistoryResponse{Messages: toPayloads(messages)}, nil
}

func (s *MessageServer) Window(ctx context.Context, req *chatv1.WindowRequest) (*chatv1.WindowResponse, error) {
	viewer, err := callerAs(ctx, domain.ParticipantID(req.A))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	messages, cursor, err := s.chatService.Window(ctx, viewer, domain.ParticipantID(req.B),
		domain.Page{Limit: req.Limit, Before: req.Before})
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.WindowResponse{Messages: toPayloads(messages), NextCursor: cursor}, nil
}

func (s *MessageServer) Conversations(ctx context.Context, req *chatv1.ConversationsRequest) (*chatv1.ConversationsResponse, error) {
	viewer, err := callerAs(ctx, domain.ParticipantID(req.Viewer))
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	candidates := lo.Map(req.With, func(id string, _ int) domain.ParticipantID { return domain.ParticipantID(id) })
	conversations, err := s.chatService.Conversations(ctx, viewer, candidates)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &chatv1.ConversationsResponse{Conversations: ToConversations(conversations)}, nil
}

// Connect holds a realtime connection open for the lifetime of the stream.
// This method blocks until the client disconnects or a send fails.
func (s *MessageServer) Connect(req *chatv1.ConnectRequest, stream chatv1.MessageService_ConnectServer) error {
	participant, err := callerAs(stream.Context(), domain.ParticipantID(req.Participant))
	if err != nil {
		return errors.MapToGRPCError(err)
	}
	if participant.IsZero() {
		return errors.MapToGRPCError(fmt.Errorf("%w: participant is required", errors.ErrValidation))
	}

	sink := NewStreamSink(s.connectionBufferSize)
	s.chatService.Connect(sink, participant)
	defer s.chatService.Disconnect(sink)
	// Headers tell the client it is joined, anything sent from now on reaches this stream.
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			s.log.Debug("Client disconnected", "participant", participant.String(), "connection", sink.ID())
			return nil
		case evt := <-sink.Events:
			data, err := event.Encode(evt)
			if err != nil {
				s.log.Error("Event encoding failed", "error", err)
				continue
			}
			if err = stream.Send(&chatv1.ChatEvent{Type: string(evt.Type()), Data: data}); err != nil {
				s.log.Error("failed to push event to stream",
					"participant", participant.String(),
					"error", err)
				return err
			}
		}
	}
}

// callerAs resolves the identity a call acts as. Without authentication the
// announced identity is trusted; with it, the announced identity must be the caller's.
func callerAs(ctx context.Context, announced domain.ParticipantID) (domain.ParticipantID, error) {
	caller, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return announced, nil
	}
	if announced.IsZero() {
		return caller, nil
	}
	if announced != caller {
		return "", fmt.Errorf("%w: authenticated as %q", errors.ErrIdentityMismatch, caller)
	}
	return caller, nil
}

func toPayloads(messages []domain.Message) []chatv1.Message {
	return lo.Map(messages, func(m domain.Message, _ int) chatv1.Message { return event.NewMessagePayload(m) })
}

// ToConversations renders the chat list, newest conversation first.
func ToConversations(conversations map[domain.ParticipantID][]domain.Message) []chatv1.Conversation {
	return lo.Map(projection.Summaries(conversations), func(summary domain.ConversationSummary, _ int) chatv1.Conversation {
		return chatv1.Conversation{
			Counterparty: summary.Counterparty.String(),
			Count:        summary.Count,
			Last:         event.NewMessagePayload(summary.Last),
			Messages:     toPayloads(conversations[summary.Counterparty]),
		}
	})
}
