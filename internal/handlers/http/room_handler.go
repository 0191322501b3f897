package http

import (
	"errors"
	"net/http"

	"peercall/internal/core/domain"
	"peercall/internal/core/ports"
	"peercall/pkg/config"
	apperrors "peercall/pkg/errors"
	"peercall/pkg/validation"

	webrtc "github.com/pion/webrtc/v3"

	"github.com/gin-gonic/gin"
)

// RoomHandler exposes a read-only view of live session state: rooms, member
// lists, screen-share state and history, chat log, plus the ICE server
// catalogue clients need to build an RTCPeerConnection.
type RoomHandler struct {
	registry    ports.ConnectionRegistry
	directory   ports.RoomDirectory
	shares      ports.ScreenShareStore
	chat        ports.ChatLog
	coordinator ports.SessionCoordinator
	iceServers  []webrtc.ICEServer
}

func NewRoomHandler(
	registry ports.ConnectionRegistry,
	directory ports.RoomDirectory,
	shares ports.ScreenShareStore,
	chat ports.ChatLog,
	coordinator ports.SessionCoordinator,
	cfg *config.Config,
) *RoomHandler {
	iceServers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		iceServers = append(iceServers, server)
	}

	return &RoomHandler{
		registry:    registry,
		directory:   directory,
		shares:      shares,
		chat:        chat,
		coordinator: coordinator,
		iceServers:  iceServers,
	}
}

// respondError maps domain sentinels onto the structured error envelope; an
// unrecognized error becomes a 500.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		switch {
		case errors.Is(err, domain.ErrConnectionNotFound):
			appErr = apperrors.NewNotFoundError("connection")
		case errors.Is(err, domain.ErrRoomNotFound):
			appErr = apperrors.NewNotFoundError("room")
		case errors.Is(err, domain.ErrShareNotFound):
			appErr = apperrors.NewNotFoundError("screen share")
		default:
			appErr = apperrors.NewInternalError(err.Error())
		}
	}
	c.JSON(appErr.HTTPStatus, gin.H{"error": gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	}})
}

func (h *RoomHandler) SetupRoutes(router *gin.Engine, middlewares ...gin.HandlerFunc) {
	api := router.Group("/api/v1", middlewares...)
	{
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/:id/members", h.GetRoomMembers)
		api.GET("/rooms/:id/screenshare", h.GetRoomShareState)
		api.GET("/rooms/:id/chat", h.GetRoomChat)
		api.GET("/connections/:id/history", h.GetShareHistory)
		api.GET("/ice-servers", h.GetICEServers)
	}
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.directory.Rooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))
	if err := validation.ValidateRoomID(string(roomID)); err != nil {
		respondError(c, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	members, err := h.directory.Members(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	type memberInfo struct {
		ID          domain.ConnectionID `json:"id"`
		DisplayName string              `json:"display_name"`
	}
	infos := make([]memberInfo, 0, len(members))
	for _, id := range members {
		info := memberInfo{ID: id}
		if conn, err := h.registry.Lookup(c.Request.Context(), id); err == nil {
			info.DisplayName = conn.DisplayName
		}
		infos = append(infos, info)
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id": roomID,
		"members": infos,
	})
}

func (h *RoomHandler) GetRoomShareState(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	entries, err := h.coordinator.RoomShareStates(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}

func (h *RoomHandler) GetRoomChat(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	messages, err := h.chat.Recent(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_id":  roomID,
		"messages": messages,
	})
}

func (h *RoomHandler) GetShareHistory(c *gin.Context) {
	id := domain.ConnectionID(c.Param("id"))

	if _, err := h.registry.Lookup(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	history, err := h.shares.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connection_id": id,
		"history":       history,
	})
}

func (h *RoomHandler) GetICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ice_servers": h.iceServers})
}
