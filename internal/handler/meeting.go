package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"collab-backend/internal/apperr"
	"collab-backend/internal/auth"
	"collab-backend/internal/model"
	"collab-backend/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// MeetingHandler 미팅 핸들러
type MeetingHandler struct {
	registry *service.Registry
	ledger   *service.Ledger
	tokens   *service.TokenIssuer
	chat     *service.ChatService
}

// NewMeetingHandler MeetingHandler 생성
func NewMeetingHandler(registry *service.Registry, ledger *service.Ledger, tokens *service.TokenIssuer, chat *service.ChatService) *MeetingHandler {
	return &MeetingHandler{registry: registry, ledger: ledger, tokens: tokens, chat: chat}
}

// UpdateStatusRequest 참가 상태 변경 요청
type UpdateStatusRequest struct {
	Status model.ParticipantStatus `json:"status"`
}

// SendChatRequest 채팅 전송 요청
type SendChatRequest struct {
	Content string `json:"content"`
}

// MeetingListResponse 미팅 목록 응답
type MeetingListResponse struct {
	Meetings []service.MeetingListItem `json:"meetings"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.BadRequest("invalid %s", name)
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	return nil
}

// CreateMeeting 미팅 생성
func (h *MeetingHandler) CreateMeeting(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	var req service.CreateMeetingInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	meeting, err := h.registry.Create(c.UserContext(), actor, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(meeting)
}

// ListMeetings 내 미팅 목록 (?status=&type=&page=&page_size=)
func (h *MeetingHandler) ListMeetings(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := c.QueryInt("page_size", defaultPageSize)
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}

	result, err := h.registry.List(c.UserContext(), actor, service.MeetingFilter{
		Status: model.MeetingStatus(c.Query("status")),
		Type:   model.MeetingType(c.Query("type")),
		Limit:  size,
		Offset: (page - 1) * size,
	})
	if err != nil {
		return err
	}

	return c.JSON(MeetingListResponse{
		Meetings: result.Meetings,
		Total:    result.Total,
		Page:     page,
		PageSize: size,
	})
}

// GetMeeting 미팅 상세
func (h *MeetingHandler) GetMeeting(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	meeting, err := h.registry.Get(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(meeting)
}

// GetInvitations 응답하지 않은 초대 목록
func (h *MeetingHandler) GetInvitations(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}

	invitations, err := h.ledger.Invitations(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invitations": invitations})
}

// IssueToken 미디어 접속 토큰 발급
func (h *MeetingHandler) IssueToken(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	grant, err := h.tokens.Issue(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(grant)
}

// GetPresence 미디어 방 접속자
func (h *MeetingHandler) GetPresence(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	list, err := h.tokens.Presence(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"participants": list})
}

// Invite 참가자 초대 (새로 만들면 201, 이미 있으면 200)
func (h *MeetingHandler) Invite(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req service.InviteInput
	if err := parseBody(c, &req); err != nil {
		return err
	}

	p, created, err := h.ledger.Invite(c.UserContext(), actor, id, req)
	if err != nil {
		return err
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(p)
}

// ListParticipants 참가자 목록
func (h *MeetingHandler) ListParticipants(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	participants, err := h.ledger.ListParticipants(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"participants": participants})
}

// GetParticipantByUser 사용자 id 로 참가 행 조회
func (h *MeetingHandler) GetParticipantByUser(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return err
	}

	p, err := h.ledger.ParticipantByUser(c.UserContext(), actor, id, userID)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// UpdateParticipantStatus 참가 상태 변경 (:ref 는 참가 행 id 또는 사용자 id)
func (h *MeetingHandler) UpdateParticipantStatus(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	p, err := h.ledger.UpdateStatus(c.UserContext(), actor, id, c.Params("ref"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// MarkMissed 부재중 처리
func (h *MeetingHandler) MarkMissed(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	p, err := h.ledger.MarkMissed(c.UserContext(), actor, id, c.Params("ref"))
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// Leave 미팅 나가기
func (h *MeetingHandler) Leave(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	p, err := h.ledger.Leave(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// EndMeeting 미팅 종료
func (h *MeetingHandler) EndMeeting(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	meeting, err := h.registry.End(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(meeting)
}

// CancelMeeting 시작 전 미팅 취소
func (h *MeetingHandler) CancelMeeting(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	meeting, err := h.registry.Cancel(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(meeting)
}

// SendChat 채팅 전송
func (h *MeetingHandler) SendChat(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req SendChatRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	msg, err := h.chat.Send(c.UserContext(), actor, id, req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetChat 채팅 목록 (?limit=)
func (h *MeetingHandler) GetChat(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	msgs, err := h.chat.List(c.UserContext(), actor, id, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs})
}
