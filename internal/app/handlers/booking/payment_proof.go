package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
)

const uploadProofKey = "booking.upload_proof"

var allowedProofTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type UploadPaymentProofCommand struct {
	BookingID   string `validate:"required"`
	Filename    string `validate:"max=255"`
	ContentType string `validate:"required"`
	Body        io.Reader
}

func (c UploadPaymentProofCommand) Key() string        { return uploadProofKey }
func (c UploadPaymentProofCommand) Action() string     { return policies.ActionUploadProof }
func (c UploadPaymentProofCommand) BookingRef() string { return c.BookingID }

// UploadPaymentProofHandler stores a receipt for a booking that is waiting on
// payment. The returned reference is what the guest then submits with
// mark-paid; the booking itself is not touched here.
type UploadPaymentProofHandler struct {
	Bookings interface {
		Get(ctx context.Context, id domainbooking.ID) (*domainbooking.Booking, error)
	}
	Storage policies.ProofStorage
	Logger  *slog.Logger
}

func (h *UploadPaymentProofHandler) Handle(ctx context.Context, cmd UploadPaymentProofCommand) (*dto.ProofUpload, error) {
	if h.Storage == nil {
		return nil, errors.New("payment proof storage is not configured")
	}
	if cmd.Body == nil {
		return nil, fmt.Errorf("%w: proof file required", domainbooking.ErrInvalidInput)
	}
	ext, ok := allowedProofTypes[strings.ToLower(cmd.ContentType)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported proof type %q", domainbooking.ErrInvalidInput, cmd.ContentType)
	}
	b, err := h.Bookings.Get(ctx, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if b.Status != domainbooking.StatusAwaitingPayment && b.Status != domainbooking.StatusPaymentFailed {
		return nil, &domainbooking.InvalidTransitionError{
			Current: b.Status,
			Target:  domainbooking.StatusAwaitingConfirmation,
			Allowed: domainbooking.AllowedTargets(b.Status),
		}
	}
	key := path.Join("payment-proofs", string(b.ID), uuid.NewString()+ext)
	ref, err := h.Storage.Upload(ctx, key, cmd.Body, cmd.ContentType)
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "payment proof stored", slog.String("booking_id", string(b.ID)), slog.String("key", key))
	}
	return &dto.ProofUpload{ProofRef: ref}, nil
}

var _ commands.Handler[UploadPaymentProofCommand, *dto.ProofUpload] = (*UploadPaymentProofHandler)(nil)
