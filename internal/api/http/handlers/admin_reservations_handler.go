package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/table-reservation/internal/api/dto"
	"github.com/spec-kit/table-reservation/internal/service"
	apperrors "github.com/spec-kit/table-reservation/pkg/util/errorutil"
)

// AdminReservationsHandler serves the administrative endpoints.
type AdminReservationsHandler struct {
	service *service.ReservationService
}

// NewAdminReservationsHandler constructs handler.
func NewAdminReservationsHandler(reservationService *service.ReservationService) *AdminReservationsHandler {
	return &AdminReservationsHandler{service: reservationService}
}

// List GET /admin/reservations.
func (h *AdminReservationsHandler) List(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	items, err := h.service.ListAll(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationList(items)})
}

// Update PATCH /admin/reservations/:id.
func (h *AdminReservationsHandler) Update(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.UpdateReservationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	fields := dto.FieldErrors{}
	input := service.UpdateInput{
		TableID:   optionalTrimmed(req.TableID),
		PartySize: req.PartySize,
	}
	if req.Date != nil {
		d := fields.ParseDate("date", *req.Date)
		input.Date = &d
	}
	if req.StartTime != nil {
		t := fields.ParseTime("start_time", *req.StartTime)
		input.Start = &t
	}
	if req.EndTime != nil {
		t := fields.ParseTime("end_time", *req.EndTime)
		input.End = &t
	}
	if len(fields) > 0 {
		return apperrors.NewInvalidInput("invalid reservation", fields)
	}

	reservation, err := h.service.AdminUpdate(c.UserContext(), identity, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReservationResponse(reservation)})
}

// Delete DELETE /admin/reservations/:id.
func (h *AdminReservationsHandler) Delete(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	if err := h.service.AdminDelete(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
