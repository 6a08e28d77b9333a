package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/errors"
	"vibehive/projection"
	"vibehive/services"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

const nextCursorHeader = "X-Next-Cursor"

type MessageController struct {
	log            *slog.Logger
	service        services.IChatService
	requestTimeout time.Duration
}

func NewMessageController(log *slog.Logger, service services.IChatService, requestTimeout time.Duration) *MessageController {
	return &MessageController{log: log, service: service, requestTimeout: requestTimeout}
}

type sendRequest struct {
	RequestID string `json:"requestId"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Content   string `json:"content"`
}

type conversationView struct {
	Counterparty string                 `json:"counterparty"`
	Count        int                    `json:"count"`
	Last         event.MessagePayload   `json:"last"`
	Messages     []event.MessagePayload `json:"messages"`
}

// History returns the conversation between both path participants, oldest first.
// A limit or before query switches to one bounded window, the cursor of the
// next older window is sent back in X-Next-Cursor.
func (m *MessageController) History(c *gin.Context) {
	viewer, err := actingAs(c, domain.ParticipantID(c.Param("userId")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	other := domain.ParticipantID(c.Param("receiverId"))

	ctx, cancel := m.context(c)
	defer cancel()

	limitStr, hasLimit := c.GetQuery("limit")
	before, hasBefore := c.GetQuery("before")
	if !hasLimit && !hasBefore {
		messages, err := m.service.History(ctx, viewer, other)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toPayloads(messages))
		return
	}

	page := domain.Page{}
	if hasLimit {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			abortWithError(c, fmt.Errorf("%w: limit %q is not a number", errors.ErrValidation, limitStr))
			return
		}
		page.Limit = limit
	}
	if hasBefore && before != "" {
		page.Before = &before
	}
	messages, cursor, err := m.service.Window(ctx, viewer, other, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if cursor != nil {
		c.Header(nextCursorHeader, *cursor)
	}
	c.JSON(http.StatusOK, toPayloads(messages))
}

// Send persists and broadcasts one message, exactly like a websocket send_message.
func (m *MessageController) Send(c *gin.Context) {
	var body sendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", errors.ErrValidation, err))
		return
	}
	sender, err := actingAs(c, domain.ParticipantID(body.Sender))
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx, cancel := m.context(c)
	defer cancel()
	receipt, err := m.service.Send(ctx, domain.SendIntent{
		RequestID: body.RequestID,
		Sender:    sender,
		Receiver:  domain.ParticipantID(body.Receiver),
		Content:   body.Content,
	})
	if err != nil {
		m.log.Debug("REST send rejected", "sender", sender.String(), "error", err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event.NewMessagePayload(receipt.Message))
}

// Conversations lists the non-empty conversations of viewer, newest first.
// with=a,b restricts the candidates, otherwise every known counterparty is used.
func (m *MessageController) Conversations(c *gin.Context) {
	viewer, err := actingAs(c, domain.ParticipantID(c.Param("viewer")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	candidates := lo.FilterMap(strings.Split(c.Query("with"), ","), func(id string, _ int) (domain.ParticipantID, bool) {
		id = strings.TrimSpace(id)
		return domain.ParticipantID(id), id != ""
	})

	ctx, cancel := m.context(c)
	defer cancel()
	conversations, err := m.service.Conversations(ctx, viewer, candidates)
	if err != nil {
		abortWithError(c, err)
		return
	}
	views := lo.Map(projection.Summaries(conversations), func(summary domain.ConversationSummary, _ int) conversationView {
		return conversationView{
			Counterparty: summary.Counterparty.String(),
			Count:        summary.Count,
			Last:         event.NewMessagePayload(summary.Last),
			Messages:     toPayloads(conversations[summary.Counterparty]),
		}
	})
	c.JSON(http.StatusOK, views)
}

func (m *MessageController) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if m.requestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), m.requestTimeout)
}

// actingAs mirrors the gRPC rule: an authenticated caller may leave the
// identity out, but may never announce somebody else.
func actingAs(c *gin.Context, announced domain.ParticipantID) (domain.ParticipantID, error) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return announced, nil
	}
	caller, _ := value.(domain.ParticipantID)
	if announced.IsZero() {
		return caller, nil
	}
	if announced != caller {
		return "", fmt.Errorf("%w: authenticated as %q", errors.ErrIdentityMismatch, caller)
	}
	return caller, nil
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error(), "code": errors.Code(err)})
}

func toPayloads(messages []domain.Message) []event.MessagePayload {
	return lo.Map(messages, func(m domain.Message, _ int) event.MessagePayload { return event.NewMessagePayload(m) })
}
