package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/parleyvoice/go-parley/pkg/customer"
)

// ingestTimeout bounds one background ingestion run.
const ingestTimeout = 2 * time.Minute

// IngestRequest submits raw text for a customer's knowledge base.
type IngestRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// handleIngestDocument accepts text and ingests it in the background.
// The response carries a job ID the client polls for completion.
func (s *Server) handleIngestDocument(c *fiber.Ctx) error {
	customerID := c.Params("id")
	if _, err := s.deps.Customers.Get(customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "customer not found"})
		}
		s.logger.Error("load customer failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load customer"})
	}

	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}
	if req.Source == "" {
		req.Source = "upload"
	}

	job := s.deps.Tracker.Begin(customerID, req.Source)

	// The request context dies when the handler returns; ingestion gets
	// its own deadline.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		result, err := s.deps.Ingestor.IngestText(ctx, customerID, req.Source, req.Text)
		if err != nil {
			s.logger.Error("ingestion failed", "job_id", job.ID, "customer_id", customerID, "error", err)
			s.deps.Tracker.Fail(job.ID, err)
			return
		}
		s.deps.Tracker.Complete(job.ID, result)
	}()

	return c.Status(fiber.StatusAccepted).JSON(job)
}

// handleListJobs returns all ingestion jobs for a customer.
func (s *Server) handleListJobs(c *fiber.Ctx) error {
	return c.JSON(s.deps.Tracker.ForCustomer(c.Params("id")))
}

// handleJobStatus returns one ingestion job.
func (s *Server) handleJobStatus(c *fiber.Ctx) error {
	job, ok := s.deps.Tracker.Get(c.Params("jobID"))
	if !ok || job.CustomerID != c.Params("id") {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(job)
}

// handleDeleteDocument removes a document's chunks from the knowledge
// store.
func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	customerID := c.Params("id")
	docID := c.Params("docID")

	if err := s.deps.Knowledge.DeleteDocument(c.Context(), customerID, docID); err != nil {
		s.logger.Error("delete document failed", "customer_id", customerID, "document_id", docID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete document"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
