package client

import (
	"context"
	"fmt"

	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/infrastructure/grpc/chatv1"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// MessageClient is the typed client of MessageService used by the CLI.
type MessageClient struct {
	conn   *grpc.ClientConn
	client chatv1.MessageServiceClient
}

// Dial connects to address. A non-empty token is sent as a bearer on every call.
func Dial(address, token string, opts ...grpc.DialOption) (*MessageClient, error) {
	options := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if token != "" {
		options = append(options,
			grpc.WithChainUnaryInterceptor(bearerUnary(token)),
			grpc.WithChainStreamInterceptor(bearerStream(token)),
		)
	}
	conn, err := grpc.NewClient(address, append(options, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return NewMessageClient(conn), nil
}

func NewMessageClient(conn *grpc.ClientConn) *MessageClient {
	return &MessageClient{conn: conn, client: chatv1.NewMessageServiceClient(conn)}
}

func (c *MessageClient) Close() error {
	return c.conn.Close()
}

func (c *MessageClient) Send(ctx context.Context, intent domain.SendIntent) (domain.Message, error) {
	res, err := c.client.Send(ctx, &chatv1.SendRequest{
		RequestID: intent.RequestID,
		Sender:    intent.Sender.String(),
		Receiver:  intent.Receiver.String(),
		Content:   intent.Content,
	})
	if err != nil {
		return domain.Message{}, err
	}
	return res.Message.Message()
}

func (c *MessageClient) History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error) {
	res, err := c.client.History(ctx, &chatv1.HistoryRequest{A: a.String(), B: b.String()})
	if err != nil {
		return nil, err
	}
	return fromPayloads(res.Messages)
}

func (c *MessageClient) Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error) {
	res, err := c.client.Window(ctx, &chatv1.WindowRequest{A: a.String(), B: b.String(), Limit: page.Limit, Before: page.Before})
	if err != nil {
		return nil, nil, err
	}
	messages, err := fromPayloads(res.Messages)
	return messages, res.NextCursor, err
}

func (c *MessageClient) Conversations(ctx context.Context, viewer domain.ParticipantID, with []domain.ParticipantID) ([]domain.ConversationSummary, error) {
	res, err := c.client.Conversations(ctx, &chatv1.ConversationsRequest{
		Viewer: viewer.String(),
		With:   lo.Map(with, func(p domain.ParticipantID, _ int) string { return p.String() }),
	})
	if err != nil {
		return nil, err
	}
	summaries := make([]domain.ConversationSummary, 0, len(res.Conversations))
	for _, conversation := range res.Conversations {
		last, err := conversation.Last.Message()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.ConversationSummary{
			Counterparty: domain.ParticipantID(conversation.Counterparty),
			Last:         last,
			Count:        conversation.Count,
		})
	}
	return summaries, nil
}

// Listen streams every event delivered to participant until ctx ends or the stream breaks.
// ready, when not nil, is called once the server has joined the participant's room:
// every message sent after that reaches handle.
func (c *MessageClient) Listen(ctx context.Context, participant domain.ParticipantID, ready func(), handle func(event.DomainEvent)) error {
	stream, err := c.client.Connect(ctx, &chatv1.ConnectRequest{Participant: participant.String()})
	if err != nil {
		return err
	}
	if _, err = stream.Header(); err != nil {
		return err
	}
	if ready != nil {
		ready()
	}
	for {
		msg, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		evt, err := event.Decode(event.Type(msg.Type), msg.Data)
		if err != nil {
			continue
		}
		handle(evt)
	}
}

func fromPayloads(payloads []chatv1.Message) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(payloads))
	for _, p := range payloads {
		m, err := p.Message()
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func bearerUnary(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token), method, req, reply, cc, opts...)
	}
}

func bearerStream(token string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token), desc, cc, method, opts...)
	}
}
