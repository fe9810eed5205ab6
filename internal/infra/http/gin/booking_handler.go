package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	"staybook/internal/app/queries"
	"staybook/internal/domain/shared/daterange"
)

const maxProofBytes = 10 << 20

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	Guests     int    `json:"guests"`
}

type markPaidRequest struct {
	Method    string `json:"payment_method"`
	Reference string `json:"payment_reference"`
	ProofRef  string `json:"payment_proof_url"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Create(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
		return
	}
	checkIn, err1 := time.Parse(daterange.Layout, req.CheckIn)
	checkOut, err2 := time.Parse(daterange.Layout, req.CheckOut)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD", "code": "invalid_input"})
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		GuestID:    p.ID,
		PropertyID: req.PropertyID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Guests:     req.Guests,
		ClientKey:  c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	q := bookingapp.GetBookingQuery{BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) ListMine(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	q := bookingapp.ListGuestBookingsQuery{
		GuestID: p.ID,
		Status:  c.Query("status"),
		Limit:   parseIntWithDefault(c.Query("limit"), 0),
		Offset:  parseIntWithDefault(c.Query("offset"), 0),
	}
	result, err := queries.Ask[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Approve(c *gin.Context) {
	dispatchTransition(c, h, bookingapp.ApproveBookingCommand{BookingID: c.Param("id")})
}

func (h BookingHandler) MarkPaid(c *gin.Context) {
	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
		return
	}
	dispatchTransition(c, h, bookingapp.MarkPaidCommand{
		BookingID: c.Param("id"),
		Method:    strings.TrimSpace(req.Method),
		Reference: strings.TrimSpace(req.Reference),
		ProofRef:  strings.TrimSpace(req.ProofRef),
	})
}

func (h BookingHandler) ConfirmPayment(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req notesRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	dispatchTransition(c, h, bookingapp.ConfirmPaymentCommand{BookingID: c.Param("id"), ConfirmedBy: p.ID, Notes: req.Notes})
}

func (h BookingHandler) RejectPayment(c *gin.Context) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	dispatchTransition(c, h, bookingapp.RejectPaymentCommand{BookingID: c.Param("id"), Reason: strings.TrimSpace(req.Reason)})
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	dispatchTransition(c, h, bookingapp.CancelBookingCommand{BookingID: c.Param("id"), Reason: strings.TrimSpace(req.Reason)})
}

func (h BookingHandler) Complete(c *gin.Context) {
	dispatchTransition(c, h, bookingapp.CompleteBookingCommand{BookingID: c.Param("id")})
}

// UploadProof accepts a multipart "file" field and returns the stored
// reference for use with mark-paid.
func (h BookingHandler) UploadProof(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProofBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" required", "code": "invalid_input"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	defer f.Close()
	cmd := bookingapp.UploadPaymentProofCommand{
		BookingID:   c.Param("id"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}
	result, err := commands.Dispatch[bookingapp.UploadPaymentProofCommand, *dto.ProofUpload](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func dispatchTransition[C commands.Command](c *gin.Context, h BookingHandler, cmd C) {
	result, err := commands.Dispatch[C, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func bindOptionalJSON(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_input"})
		return false
	}
	return true
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
