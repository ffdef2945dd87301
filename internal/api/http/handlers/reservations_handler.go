package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/table-reservation/internal/api/dto"
	"github.com/spec-kit/table-reservation/internal/auth"
	"github.com/spec-kit/table-reservation/internal/domain"
	"github.com/spec-kit/table-reservation/internal/service"
	apperrors "github.com/spec-kit/table-reservation/pkg/util/errorutil"
)

// ReservationsHandler serves the caller's own reservations.
type ReservationsHandler struct {
	service *service.ReservationService
}

// NewReservationsHandler constructs handler.
func NewReservationsHandler(reservationService *service.ReservationService) *ReservationsHandler {
	return &ReservationsHandler{service: reservationService}
}

// Create POST /reservations.
func (h *ReservationsHandler) Create(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateReservationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	fields := dto.FieldErrors{}
	input := service.CreateInput{
		TableID:   req.TableID,
		Date:      fields.ParseDate("date", req.Date),
		Start:     fields.ParseTime("start_time", req.StartTime),
		End:       fields.ParseTime("end_time", req.EndTime),
		PartySize: req.PartySize,
	}
	if len(fields) > 0 {
		return apperrors.NewInvalidInput("invalid reservation", fields)
	}

	reservation, err := h.service.Create(c.UserContext(), identity, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewReservationResponse(reservation)})
}

// List GET /reservations.
func (h *ReservationsHandler) List(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListOwn(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationList(items)})
}

// Get GET /reservations/:id.
func (h *ReservationsHandler) Get(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	reservation, err := h.service.Get(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(reservation)})
}

// Cancel POST /reservations/:id/cancel.
func (h *ReservationsHandler) Cancel(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	reservation, err := h.service.Cancel(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(reservation)})
}

func callerIdentity(c *fiber.Ctx) (domain.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewVerificationFailed("authentication required")
	}
	return identity, nil
}

func optionalTrimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
