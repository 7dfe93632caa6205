package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-coach/pkg/agent"
)

// SessionRequest carries the browser's SDP offer.
type SessionRequest struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// SessionResponse carries the server's answer.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
}

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Viewers  int    `json:"viewers"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := HealthResponse{Status: "ok", Sessions: s.sessions.Count()}
	if s.debugHub != nil {
		resp.Viewers = s.debugHub.ClientCount()
	}
	return c.JSON(resp)
}

// handleCreateSession answers an offer and starts a session on the new
// peer.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Type != webrtc.SDPTypeOffer.String() || req.SDP == "" {
		return fiber.NewError(fiber.StatusBadRequest, "expected an SDP offer")
	}

	peer, err := s.newPeer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.answerTimeout)
	defer cancel()

	answer, err := peer.Answer(ctx, webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP})
	if err != nil {
		peer.Close()
		s.logger.Warn("offer rejected", "error", err)
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	session, err := s.sessions.Start(s.baseCtx, peer)
	if err != nil {
		peer.Close()
		if errors.Is(err, agent.ErrTooManySessions) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		SessionID: session.ID(),
		SDP:       answer.SDP,
		Type:      answer.Type.String(),
	})
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if err := s.sessions.Stop(c.Params("id")); err != nil {
		if errors.Is(err, agent.ErrSessionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
