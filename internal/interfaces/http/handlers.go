package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bakeassist/bakeassist/internal/agent"
)

const (
	welcomeText = "Welcome to Bake Assist chatbot"

	msgMissingCustomer  = "Missing 'customer_number' query parameter"
	msgInvalidCustomer  = "Invalid 'customer_number'"
	msgMissingMessage   = "Missing 'message' in JSON body"
	msgRateLimited      = "Too many requests, please slow down"
	msgDecisionFailed   = "Failed to get response from language model"
	msgResponseFailed   = "Failed to get final response from language model after tool use"
	msgUnexpected       = "An unexpected server error occurred"
	msgCustomersFailure = "Failed to retrieve customer data"
	msgBusy             = "Too many messages in flight, please wait for a reply"
)

// apiError is an HTTP status with the client-facing message.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func (s *Server) handleIndex(c *gin.Context) {
	c.String(http.StatusOK, welcomeText)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": formatUptime(time.Since(s.startedAt)),
	})
}

func (s *Server) handleCustomers(c *gin.Context) {
	customers, err := s.customers.ListCustomers(c.Request.Context())
	if err != nil {
		s.logger.Error("list customers failed", "request_id", requestID(c), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgCustomersFailure})
		return
	}
	if customers == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, customers)
}

type chatRequest struct {
	Message *string `json:"message"`
}

func (s *Server) handleChat(c *gin.Context) {
	customer, apiErr := s.admitCustomer(c.Request.Context(), c.Query("customer_number"), requestID(c))
	if apiErr != nil {
		c.JSON(apiErr.status, gin.H{"error": apiErr.message})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingMessage})
		return
	}

	reply, apiErr := s.runTurn(c.Request.Context(), customer, *req.Message, "http", requestID(c))
	if apiErr != nil {
		c.JSON(apiErr.status, gin.H{"error": apiErr.message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// admitCustomer checks presence, rate limit and existence of the customer,
// in that order.
func (s *Server) admitCustomer(ctx context.Context, customer, reqID string) (string, *apiError) {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return "", &apiError{http.StatusBadRequest, msgMissingCustomer}
	}
	if apiErr := s.checkRate(ctx, customer, reqID); apiErr != nil {
		return "", apiErr
	}
	return s.verifyCustomer(ctx, customer, reqID)
}

// checkRate spends one request from the customer's budget. Limiter failures
// admit the request.
func (s *Server) checkRate(ctx context.Context, customer, reqID string) *apiError {
	if s.limiter == nil {
		return nil
	}
	ok, err := s.limiter.Allow(ctx, customer)
	switch {
	case err != nil:
		s.logger.Warn("rate limiter unavailable, admitting request", "request_id", reqID, "error", err)
	case !ok:
		s.logger.Info("rate limited", "request_id", reqID, "customer", customer)
		return &apiError{http.StatusTooManyRequests, msgRateLimited}
	}
	return nil
}

func (s *Server) verifyCustomer(ctx context.Context, customer, reqID string) (string, *apiError) {
	exists, err := s.customers.CustomerExists(ctx, customer)
	if err != nil {
		s.logger.Error("customer verification failed", "request_id", reqID, "customer", customer, "error", err)
		return "", &apiError{http.StatusInternalServerError, msgUnexpected}
	}
	if !exists {
		s.logger.Info("unknown customer", "request_id", reqID, "customer", customer)
		return "", &apiError{http.StatusBadRequest, msgInvalidCustomer}
	}
	return customer, nil
}

// runTurn runs one turn and maps failures to client-facing errors.
func (s *Server) runTurn(ctx context.Context, customer, message, channel, reqID string) (string, *apiError) {
	turnID := reqID
	if turnID == "" {
		turnID = uuid.NewString()
	}
	res, err := s.runner.Run(ctx, &agent.RunRequest{
		TurnID:         turnID,
		CustomerNumber: customer,
		Message:        message,
		Channel:        channel,
	})
	if err == nil {
		return res.Reply, nil
	}

	var genErr *agent.GenerationError
	if errors.As(err, &genErr) {
		if genErr.Stage == agent.StageResponse {
			return "", &apiError{http.StatusInternalServerError, msgResponseFailed}
		}
		return "", &apiError{http.StatusInternalServerError, msgDecisionFailed}
	}
	s.logger.Error("chat turn failed", "turn_id", turnID, "error", err)
	return "", &apiError{http.StatusInternalServerError, msgUnexpected}
}

func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
