package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contacts-api/internal/domain"
	"contacts-api/internal/service"
)

// ContactHandler mantiene dependencias para endpoints de contactos.
type ContactHandler struct {
	logger   *zap.Logger
	contacts *service.ContactService
}

func NewContactHandler(logger *zap.Logger, contacts *service.ContactService) *ContactHandler {
	return &ContactHandler{
		logger:   logger,
		contacts: contacts,
	}
}

type contactRequest struct {
	FirstName string `json:"first_name" binding:"required,max=50"`
	LastName  string `json:"last_name" binding:"required,max=50"`
	Phone     string `json:"phone" binding:"required,max=20"`
	Email     string `json:"email" binding:"required,email"`
	Birthday  string `json:"birthday" binding:"required"`
	Addition  string `json:"addition" binding:"max=250"`
}

func (r contactRequest) input() service.ContactInput {
	return service.ContactInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Email:     r.Email,
		Birthday:  r.Birthday,
		Addition:  r.Addition,
	}
}

// List maneja GET /contacts.
func (h *ContactHandler) List(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	contacts, err := h.contacts.List(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// Search maneja GET /contacts/search; cada query key distinta de limit/offset es un filtro.
func (h *ContactHandler) Search(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	limit, offset, ok := h.page(c)
	if !ok {
		return
	}
	filters := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if key == "limit" || key == "offset" || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}
	contacts, err := h.contacts.Search(c.Request.Context(), user.ID, filters, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// Birthdays maneja GET /contacts/birthdays con dates=MM-DD,... o days=N.
func (h *ContactHandler) Birthdays(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}

	var (
		contacts []domain.Contact
		err      error
	)
	if dates, present := c.GetQuery("dates"); present {
		contacts, err = h.contacts.BirthdaysOn(c.Request.Context(), user.ID, splitDates(dates))
	} else {
		days, ok := intQuery(c, h.logger, "days", service.DefaultUpcomingDays)
		if !ok {
			return
		}
		contacts, err = h.contacts.Upcoming(c.Request.Context(), user.ID, days)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// Get maneja GET /contacts/:id.
func (h *ContactHandler) Get(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	contact, err := h.contacts.Get(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// Create maneja POST /contacts.
func (h *ContactHandler) Create(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}
	contact, err := h.contacts.Create(c.Request.Context(), user.ID, req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// Update maneja PUT /contacts/:id (reemplazo completo).
func (h *ContactHandler) Update(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, err)
		return
	}
	contact, err := h.contacts.Update(c.Request.Context(), user.ID, c.Param("id"), req.input())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// Delete maneja DELETE /contacts/:id y devuelve el contacto borrado.
func (h *ContactHandler) Delete(c *gin.Context) {
	user, ok := h.user(c)
	if !ok {
		return
	}
	contact, err := h.contacts.Delete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) user(c *gin.Context) (domain.User, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithDetail(c, http.StatusUnauthorized, "Not authenticated")
	}
	return user, ok
}

func (h *ContactHandler) page(c *gin.Context) (int, int, bool) {
	limit, ok := intQuery(c, h.logger, "limit", service.DefaultContactLimit)
	if !ok {
		return 0, 0, false
	}
	offset, ok := intQuery(c, h.logger, "offset", 0)
	if !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

func intQuery(c *gin.Context, logger *zap.Logger, name string, def int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || strings.TrimSpace(raw) == "" {
		return def, true
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		respondBindError(c, logger, fmt.Errorf("%s must be an integer", name))
		return 0, false
	}
	return v, true
}

func splitDates(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
