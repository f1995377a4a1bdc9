package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/analytics"
	"rollcall/internal/apperr"
	"rollcall/internal/auth"
	"rollcall/internal/checkin"
	"rollcall/internal/counts"
	"rollcall/internal/metrics"
	"rollcall/internal/qr"
	"rollcall/internal/queue"
	"rollcall/internal/roster"
	"rollcall/internal/session"
	"rollcall/internal/user"
)

// Handler wires the HTTP surface to the domain services.
type Handler struct {
	users     *user.Service
	sessions  *session.Service
	engine    *checkin.Engine
	notifier  *roster.Notifier
	checkins  checkin.Store
	analytics *analytics.Service
	queue     queue.Queue
	counts    *counts.Cache // nil when Redis is not configured

	jwtIssuer     string
	jwtSigningKey string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	publicBaseURL string
}

// Config carries the handler's collaborators and token settings.
type Config struct {
	Users         *user.Service
	Sessions      *session.Service
	Engine        *checkin.Engine
	Notifier      *roster.Notifier
	Checkins      checkin.Store
	Analytics     *analytics.Service
	Queue         queue.Queue
	Counts        *counts.Cache
	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	PublicBaseURL string
}

// New creates the handler.
func New(cfg Config) *Handler {
	return &Handler{
		users:         cfg.Users,
		sessions:      cfg.Sessions,
		engine:        cfg.Engine,
		notifier:      cfg.Notifier,
		checkins:      cfg.Checkins,
		analytics:     cfg.Analytics,
		queue:         cfg.Queue,
		counts:        cfg.Counts,
		jwtIssuer:     cfg.JWTIssuer,
		jwtSigningKey: cfg.JWTSigningKey,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		publicBaseURL: cfg.PublicBaseURL,
	}
}

// fail renders a classified error with its fixed status code. Store failures
// are logged with the wrapped cause; callers never see it.
func fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindStore || kind == apperr.KindUnknown {
		log.Printf("request failed: %v", err)
	}
	c.JSON(apperr.HTTPStatus(kind), gin.H{"status": "error", "message": apperr.Message(err)})
}

// ---------- Auth ----------

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	tokens, err := h.issueTokens(u)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "access_token": tokens.AccessToken, "refresh_token": tokens.RefreshToken, "expires_at": tokens.AccessExp.Unix()})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	u, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	tokens, err := h.issueTokens(u)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "access_token": tokens.AccessToken, "refresh_token": tokens.RefreshToken, "expires_at": tokens.AccessExp.Unix()})
}

func (h *Handler) issueTokens(u *user.User) (auth.TokenPair, error) {
	tokens, err := auth.Issue(u.ID, u.Email, u.Name, h.jwtIssuer, h.jwtSigningKey, h.accessTTL, h.refreshTTL)
	if err != nil {
		return auth.TokenPair{}, apperr.Wrap(apperr.KindStore, "token issue failed", err)
	}
	return tokens, nil
}

// ---------- Sessions ----------

type createSessionRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), session.CreateInput{
		Title:            req.Title,
		Description:      req.Description,
		CreatorID:        auth.UserID(c),
		ExpiresInMinutes: req.ExpiresInMinutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess, "attend_url": qr.AttendURL(h.publicBaseURL, sess.ID)})
}

func (h *Handler) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	sessions, err := h.sessions.ListByCreator(ctx, auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	type withCount struct {
		*session.Session
		AttendeeCount int `json:"attendee_count"`
	}
	res := make([]withCount, 0, len(sessions))
	for _, sess := range sessions {
		n, err := h.attendeeCount(ctx, sess.ID)
		if err != nil {
			fail(c, err)
			return
		}
		res = append(res, withCount{Session: sess, AttendeeCount: n})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": res})
}

// attendeeCount prefers the worker-maintained cache, falling back to the
// store and backfilling on a miss.
func (h *Handler) attendeeCount(ctx context.Context, sessionID string) (int, error) {
	if h.counts != nil {
		if n, ok := h.counts.Get(ctx, sessionID); ok {
			return n, nil
		}
	}
	n, err := h.checkins.CountBySession(ctx, sessionID)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStore, "failed to count attendees", err)
	}
	if h.counts != nil {
		_ = h.counts.Set(ctx, sessionID, n)
	}
	return n, nil
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	n, err := h.attendeeCount(c.Request.Context(), sess.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "attendees": gin.H{"count": n}})
}

type patchSessionRequest struct {
	Status session.Status `json:"status" binding:"required"`
}

func (h *Handler) PatchSession(c *gin.Context) {
	var req patchSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	var (
		sess *session.Session
		err  error
	)
	switch req.Status {
	case session.StatusClosed:
		sess, err = h.sessions.Close(c.Request.Context(), c.Param("id"), auth.UserID(c))
	case session.StatusActive:
		sess, err = h.sessions.Reopen(c.Request.Context(), c.Param("id"), auth.UserID(c))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "status must be active or closed"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), id, auth.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	if h.counts != nil {
		_ = h.counts.Drop(c.Request.Context(), id)
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

func (h *Handler) SessionQR(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	png, err := qr.PNG(h.publicBaseURL, sess.ID, 0)
	if err != nil {
		fail(c, apperr.Wrap(apperr.KindStore, "failed to render qr code", err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// ---------- Check-ins ----------

type checkinRequest struct {
	StudentID         string `json:"studentId" binding:"required"`
	StudentName       string `json:"studentName" binding:"required"`
	SessionID         string `json:"sessionId" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

func (h *Handler) SubmitCheckin(c *gin.Context) {
	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "studentId, studentName and sessionId are required"})
		return
	}

	rec, err := h.engine.Submit(c.Request.Context(), checkin.SubmitInput{
		SessionID:         req.SessionID,
		StudentID:         req.StudentID,
		StudentName:       req.StudentName,
		OriginAddr:        c.ClientIP(),
		UserAgent:         c.Request.UserAgent(),
		DeviceFingerprint: req.DeviceFingerprint,
	})
	if err != nil {
		metrics.CheckinsRejected.WithLabelValues(apperr.KindOf(err).String()).Inc()
		fail(c, err)
		return
	}
	metrics.CheckinsAccepted.Inc()

	if msg, err := queue.NewCheckinMessage(queue.CheckinEvent{
		SessionID: rec.SessionID,
		CheckinID: rec.ID,
		MarkedAt:  rec.MarkedAt,
	}); err == nil {
		if err := h.queue.Publish(c.Request.Context(), msg); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "attendance recorded",
		"data": gin.H{
			"studentId": rec.StudentID,
			"sessionId": rec.SessionID,
		},
	})
}

// ---------- Roster stream ----------

// StreamRoster serves the live roster as server-sent events: an init event
// with the full list, then an update on every poll tick until the client
// disconnects or the session is deleted.
func (h *Handler) StreamRoster(c *gin.Context) {
	sessionID := c.Param("id")
	if _, err := h.sessions.Get(c.Request.Context(), sessionID); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	metrics.RosterSubscribers.Inc()
	defer metrics.RosterSubscribers.Dec()

	events := h.notifier.Subscribe(c.Request.Context(), sessionID)
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("message", ev)
		return true
	})
}

// ---------- Analytics ----------

func (h *Handler) Analytics(c *gin.Context) {
	summary, err := h.analytics.Summarize(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
