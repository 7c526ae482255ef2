package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"event-signup-backend/internal/model"
	"event-signup-backend/internal/notification"
	"event-signup-backend/internal/parse"
)

type registerRequest struct {
	StudentEmail string `json:"student_email" binding:"required"`
}

type registerResponse struct {
	RegistrationID int64                    `json:"registration_id"`
	Status         model.RegistrationStatus `json:"status"`
}

// Register handles POST /api/events/:event_id/registrations. A waitlisted
// outcome is a success, not an error; the response status field tells the two
// apart.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email, err := parse.ParseEmail(req.StudentEmail)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.store.Register(c.Request.Context(), c.Param("event_id"), email.String())
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", "1")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// Outside the transaction; delivery failures never unwind the sign-up.
	kind := notification.KindConfirmation
	if out.Registration.Status == model.StatusWaitlisted {
		kind = notification.KindWaitlist
	}
	h.notifier.Dispatch(notification.Job{
		StudentEmail: out.Registration.StudentEmail,
		Kind:         kind,
		EventTitle:   out.Event.Title,
	})

	c.JSON(http.StatusCreated, registerResponse{
		RegistrationID: out.Registration.ID,
		Status:         out.Registration.Status,
	})
}

type cancelRequest struct {
	StudentEmail string `json:"student_email" binding:"required"`
}

// Cancel handles DELETE /api/registrations/:id. Repeating a cancel for an
// already-cancelled record returns the same success without side effects.
func (h *Handler) Cancel(c *gin.Context) {
	registrationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration id"})
		return
	}

	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email, err := parse.ParseEmail(req.StudentEmail)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.store.Cancel(c.Request.Context(), registrationID, email.String())
	if err != nil {
		status := httpStatus(err)
		if status == http.StatusServiceUnavailable {
			c.Header("Retry-After", "1")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if !out.AlreadyCancelled {
		h.notifier.Dispatch(notification.Job{
			StudentEmail: out.Registration.StudentEmail,
			Kind:         notification.KindCancellation,
			EventTitle:   out.Event.Title,
		})
		if out.Promoted != nil {
			h.notifier.Dispatch(notification.Job{
				StudentEmail: out.Promoted.StudentEmail,
				Kind:         notification.KindPromotion,
				EventTitle:   out.Event.Title,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "cancelled"})
}

// ListActive handles GET /api/registrations?student_email=...
func (h *Handler) ListActive(c *gin.Context) {
	email, err := parse.ParseEmail(c.Query("student_email"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	regs, err := h.store.ListActive(c.Request.Context(), email.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list registrations"})
		return
	}
	c.JSON(http.StatusOK, regs)
}

// RegistrationCounts handles GET /api/events/:event_id/registrations/counts.
func (h *Handler) RegistrationCounts(c *gin.Context) {
	counts, err := h.store.CountsByStatus(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		c.JSON(httpStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counts)
}
