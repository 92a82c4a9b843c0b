package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/parleyvoice/go-parley/pkg/customer"
)

// CustomerRequest is the create/update body for a customer profile.
type CustomerRequest struct {
	CompanyName string `json:"company_name"`
	BotName     string `json:"bot_name"`
	Personality string `json:"personality"`
	Greeting    string `json:"greeting"`
	VoiceID     string `json:"voice_id"`
}

// handleCreateCustomer registers a new customer profile.
func (s *Server) handleCreateCustomer(c *fiber.Ctx) error {
	var req CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	profile := &customer.Profile{
		CompanyName: req.CompanyName,
		BotName:     req.BotName,
		Personality: req.Personality,
		Greeting:    req.Greeting,
		VoiceID:     req.VoiceID,
	}
	if err := s.deps.Customers.Create(profile); err != nil {
		if errors.Is(err, customer.ErrEmptyCompanyName) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		s.logger.Error("create customer failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create customer"})
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

// handleListCustomers returns all customer profiles.
func (s *Server) handleListCustomers(c *fiber.Ctx) error {
	profiles, err := s.deps.Customers.List()
	if err != nil {
		s.logger.Error("list customers failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list customers"})
	}
	return c.JSON(profiles)
}

// handleGetCustomer returns one customer profile.
func (s *Server) handleGetCustomer(c *fiber.Ctx) error {
	profile, err := s.deps.Customers.Get(c.Params("id"))
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		}
		s.logger.Error("get customer failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load customer"})
	}
	return c.JSON(profile)
}

// handleUpdateCustomer replaces a customer's mutable fields.
func (s *Server) handleUpdateCustomer(c *fiber.Ctx) error {
	id := c.Params("id")

	var req CustomerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	profile := &customer.Profile{
		ID:          id,
		CompanyName: req.CompanyName,
		BotName:     req.BotName,
		Personality: req.Personality,
		Greeting:    req.Greeting,
		VoiceID:     req.VoiceID,
	}
	if err := s.deps.Customers.Update(profile); err != nil {
		switch {
		case errors.Is(err, customer.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		case errors.Is(err, customer.ErrEmptyCompanyName):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			s.logger.Error("update customer failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update customer"})
		}
	}

	return c.JSON(profile)
}

// handleDeleteCustomer removes a profile and all of the customer's
// knowledge chunks.
func (s *Server) handleDeleteCustomer(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := s.deps.Customers.Delete(id); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		}
		s.logger.Error("delete customer failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete customer"})
	}

	if err := s.deps.Knowledge.DeleteCustomer(c.Context(), id); err != nil {
		s.logger.Error("delete customer knowledge failed", "customer_id", id, "error", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
