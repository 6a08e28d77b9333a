package realtime

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"vibehive/auth"
	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/errors"
	"vibehive/services"

	"github.com/gorilla/websocket"
)

const maxFrameBytes = 64 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Identity is checked on join_room, not on the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to realtime sessions.
type Handler struct {
	log         *slog.Logger
	service     services.IChatService
	verifier    *auth.Verifier
	readTimeout time.Duration
	bufferSize  int
}

func NewHandler(log *slog.Logger, service services.IChatService, verifier *auth.Verifier, readTimeout time.Duration, bufferSize int) *Handler {
	return &Handler{log: log, service: service, verifier: verifier, readTimeout: readTimeout, bufferSize: bufferSize}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(h.log, ws, h.bufferSize)
	conn.Start()
	s := &session{Handler: h, conn: conn}
	defer func() {
		h.service.Disconnect(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!goerrors.Is(err, websocket.ErrCloseSent) {
				conn.log.Debug("Websocket read ended", "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.readTimeout))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.replyError("", errors.CodeBadRequest, "invalid payload")
			continue
		}
		// Frames of one connection are handled one at a time, in order.
		s.handle(r.Context(), frame)
	}
}

// session is the per-connection state: which identity it announced.
type session struct {
	*Handler
	conn  *Connection
	bound domain.ParticipantID
}

func (s *session) handle(ctx context.Context, frame inboundFrame) {
	switch frame.Type {
	case frameJoinRoom:
		s.join(frame)
	case frameSendMessage:
		s.send(ctx, frame)
	default:
		s.replyError(frame.RequestID, errors.CodeBadRequest, fmt.Sprintf("unknown frame type %q", frame.Type))
	}
}

func (s *session) join(frame inboundFrame) {
	participant := domain.ParticipantID(frame.Room)
	if participant.IsZero() {
		s.replyError("", errors.CodeValidation, "room is required")
		return
	}
	if !s.bound.IsZero() && s.bound != participant {
		s.replyError("", errors.Code(errors.ErrAlreadyBound), errors.ErrAlreadyBound.Error())
		return
	}
	if err := s.verifier.Bind(frame.Token, participant); err != nil {
		s.conn.log.Info("Join refused", "participant", participant.String(), "error", err)
		s.replyError("", errors.Code(err), err.Error())
		return
	}
	s.bound = participant
	s.service.Connect(s.conn, participant)
	s.reply(frameJoined, joinedPayload{Participant: participant.String()})
}

func (s *session) send(ctx context.Context, frame inboundFrame) {
	sender, err := s.resolveSender(domain.ParticipantID(frame.Sender))
	if err != nil {
		s.reject(ctx, frame.RequestID, err)
		return
	}
	intent := domain.SendIntent{
		RequestID: frame.RequestID,
		Sender:    sender,
		Receiver:  domain.ParticipantID(frame.Receiver),
		Content:   frame.Content,
	}
	receipt, err := s.service.Send(ctx, intent)
	if err != nil {
		s.reject(ctx, frame.RequestID, err)
		return
	}
	if err = s.conn.Consume(ctx, event.SendAcknowledged{RequestID: frame.RequestID, Message: receipt.Message}); err != nil {
		s.conn.log.Debug("Ack not delivered", "request_id", frame.RequestID, "error", err)
	}
}

// resolveSender defaults the sender to the bound identity and refuses any other.
// Before join_room an explicit sender is trusted only when auth is off.
func (s *session) resolveSender(sender domain.ParticipantID) (domain.ParticipantID, error) {
	if s.bound.IsZero() {
		if s.verifier.Enabled() {
			return "", errors.ErrNotBound
		}
		return sender, nil
	}
	if sender.IsZero() {
		return s.bound, nil
	}
	if sender != s.bound {
		return "", fmt.Errorf("%w: bound to %q", errors.ErrIdentityMismatch, s.bound)
	}
	return sender, nil
}

func (s *session) reject(ctx context.Context, requestID string, err error) {
	rejected := event.SendRejected{RequestID: requestID, Code: errors.Code(err), Reason: err.Error()}
	if err := s.conn.Consume(ctx, rejected); err != nil {
		s.conn.log.Debug("Rejection not delivered", "request_id", requestID, "error", err)
	}
}

func (s *session) reply(frameType string, payload any) {
	frame, err := encodeFrame(frameType, payload)
	if err != nil {
		s.conn.log.Error("Frame encoding failed", "type", frameType, "error", err)
		return
	}
	_ = s.conn.enqueue(frame)
}

func (s *session) replyError(requestID, code, reason string) {
	s.reply(frameError, event.RejectPayload{RequestID: requestID, Code: code, Reason: reason})
}
