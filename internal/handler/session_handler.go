package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/handler/dto"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/middleware"
	apperrors "github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/pkg/errors"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/internal/service"
	"github.com/NexGen-Innovators-co/studdyhub-quiz-api/pkg/auth"
)

// SessionHandler обрабатывает запросы, связанные с квиз-сессиями
type SessionHandler struct {
	sessionService *service.SessionService
	sessionManager *service.SessionManager
	tokenService   *auth.TokenService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(
	sessionService *service.SessionService,
	sessionManager *service.SessionManager,
	tokenService *auth.TokenService,
) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		sessionManager: sessionManager,
		tokenService:   tokenService,
	}
}

// CreateSessionRequest представляет запрос на создание сессии
type CreateSessionRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=100"`
	HostEmail   string `json:"host_email" binding:"omitempty,email"`
	HostName    string `json:"host_name" binding:"omitempty,max=50"`
	AdvanceMode string `json:"advance_mode" binding:"omitempty,oneof=manual auto"`
	PIN         string `json:"pin" binding:"omitempty,min=4,max=12"`
}

// CreateSession обрабатывает запрос на создание сессии
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessionService.CreateSession(service.CreateSessionInput{
		Title:       req.Title,
		HostEmail:   req.HostEmail,
		HostName:    req.HostName,
		AdvanceMode: req.AdvanceMode,
		PIN:         req.PIN,
	})
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": dto.NewSessionResponse(result.Session),
		"token":   result.Token,
	})
}

// GetSession возвращает информацию о сессии
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	snapshot, err := h.sessionService.GetSnapshot(sessionID, callerUserID(c))
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// AddQuestionsRequest представляет запрос на добавление вопросов
type AddQuestionsRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// AddQuestions добавляет вопросы в сессию
func (h *SessionHandler) AddQuestions(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	var req AddQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	questions, err := h.sessionService.AddQuestions(sessionID, userID, req.Questions)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"questions": dto.NewQuestionListResponse(questions)})
}

// ImportQuestions загружает вопросы из XLSX-файла
func (h *SessionHandler) ImportQuestions(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart field 'file' is required"})
		return
	}
	defer file.Close()

	questions, err := h.sessionService.ImportQuestionsXLSX(sessionID, userID, file)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"questions": dto.NewQuestionListResponse(questions)})
}

// JoinSessionRequest представляет запрос на вход в сессию
type JoinSessionRequest struct {
	Code        string `json:"code" binding:"required,min=4,max=12"`
	PIN         string `json:"pin" binding:"omitempty,max=12"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
	Avatar      string `json:"avatar" binding:"omitempty,max=255"`
}

// JoinSession вводит игрока в сессию по коду
func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessionService.JoinSession(service.JoinSessionInput{
		Code:        req.Code,
		PIN:         req.PIN,
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
		UserID:      callerUserID(c),
	})
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": dto.NewSessionResponse(result.Session),
		"player":  dto.NewPlayerResponse(result.Player),
		"token":   result.Token,
	})
}

// StartSession запускает сессию (первый вопрос становится активным)
func (h *SessionHandler) StartSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	session, err := h.sessionManager.StartSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSessionResponse(session))
}

// SubmitAnswerRequest представляет запрос на отправку ответа
type SubmitAnswerRequest struct {
	QuestionID     uint  `json:"question_id" binding:"required"`
	SelectedOption int   `json:"selected_option" binding:"min=-1"`
	TimeTakenMs    int64 `json:"time_taken_ms" binding:"min=0"`
}

// SubmitAnswer фиксирует ответ игрока на текущий вопрос
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessionManager.SubmitAnswer(c.Request.Context(), sessionID, req.QuestionID, userID, req.SelectedOption, req.TimeTakenMs)
	if err != nil {
		// Повторная отправка конфликтует, но клиент получает ранее
		// записанный результат и может отобразить его
		if errors.Is(err, apperrors.ErrConflict) && result != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "answer": result})
			return
		}
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AdvanceSession переводит сессию к следующему вопросу
func (h *SessionHandler) AdvanceSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	result, err := h.sessionManager.AdvanceToNext(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AdvanceFallback — запасной путь перехода с ограниченными повторами
func (h *SessionHandler) AdvanceFallback(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	result, err := h.sessionManager.AdvanceFallback(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// EndSession завершает сессию по действию ведущего
func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)
	userID := c.MustGet(middleware.ContextUserID).(uint)

	result, err := h.sessionManager.EndSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSnapshot возвращает авторитетный снапшот сессии
func (h *SessionHandler) GetSnapshot(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	snapshot, err := h.sessionService.GetSnapshot(sessionID, callerUserID(c))
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetLeaderboard возвращает лидерборд сессии
func (h *SessionHandler) GetLeaderboard(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	players, err := h.sessionService.GetLeaderboard(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": dto.NewLeaderboardResponse(players)})
}

// ExportLeaderboard выгружает лидерборд сессии в XLSX
func (h *SessionHandler) ExportLeaderboard(c *gin.Context) {
	sessionID := c.MustGet("sessionID").(uint)

	players, err := h.sessionService.GetLeaderboard(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"session_%d_leaderboard.xlsx\"", sessionID))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Лидерборд"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Место", "Игрок", "Очки", "Правильных"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[SessionHandler] Ошибка записи заголовков: %v", err)
	}

	rowNum := 2
	for i := range players {
		p := &players[i]
		if !p.IsPlaying {
			continue
		}
		cell := fmt.Sprintf("A%d", rowNum)
		if err := sw.SetRow(cell, []interface{}{p.Rank, p.DisplayName, p.Score, p.CorrectCount}); err != nil {
			log.Printf("[SessionHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
		rowNum++
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[SessionHandler] Ошибка завершения записи: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
		return
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[SessionHandler] Ошибка отправки файла: %v", err)
	}
}

// WSTicket выдает короткоживущий тикет для подключения к WebSocket
func (h *SessionHandler) WSTicket(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uint)
	sessionID := c.MustGet(middleware.ContextSessionID).(uint)
	displayName, _ := c.Get(middleware.ContextDisplayName)

	name, _ := displayName.(string)
	ticket, err := h.tokenService.GenerateWSTicket(userID, sessionID, name)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

// callerUserID возвращает user_id из контекста или 0 для анонимного вызова
func callerUserID(c *gin.Context) uint {
	if v, ok := c.Get(middleware.ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// handleSessionError обрабатывает ошибки сервисного слоя
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrStaleState) {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
