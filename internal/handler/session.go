package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/pricing"
	"github.com/dukerupert/tabletill/internal/service"
)

// SessionResponse is the state of an editing session after each change.
type SessionResponse struct {
	ID         uuid.UUID             `json:"id"`
	OrderID    string                `json:"orderId,omitempty"`
	Direction  service.Direction     `json:"direction"`
	Mode       service.DiscountMode  `json:"discountMode"`
	Items      []service.EditorItem  `json:"items"`
	Allocation pricing.Allocation    `json:"allocation"`
	Totals     pricing.TotalsPayload `json:"totals"`
	LastUsed   time.Time             `json:"lastUsed"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// discountRequest sets a discount either as an amount or as a percentage.
// Exactly one of the two must be present.
type discountRequest struct {
	Amount  *decimal.Decimal `json:"amount"`
	Percent *decimal.Decimal `json:"percent"`
}

// SessionHandler serves order editing sessions.
type SessionHandler struct {
	orders service.OrderService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(orders service.OrderService) *SessionHandler {
	return &SessionHandler{orders: orders}
}

// Open handles POST /api/sessions
func (h *SessionHandler) Open(c echo.Context) error {
	var req service.OpenRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	sess, err := h.orders.Open(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusCreated, sess)
}

// Totals handles GET /api/sessions/:id/totals
func (h *SessionHandler) Totals(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, sess)
}

// AddItem handles POST /api/sessions/:id/items
func (h *SessionHandler) AddItem(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	var item service.EditorItem
	if err := c.Bind(&item); err != nil {
		return err
	}
	if err := c.Validate(&item); err != nil {
		return err
	}

	if err := sess.Editor.AddItem(item); err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, sess)
}

// SetQuantity handles PATCH /api/sessions/:id/items/:index
func (h *SessionHandler) SetQuantity(c echo.Context) error {
	sess, index, err := h.sessionItem(c)
	if err != nil {
		return err
	}

	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := sess.Editor.SetQuantity(index, *req.Quantity); err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, sess)
}

// RemoveItem handles DELETE /api/sessions/:id/items/:index
func (h *SessionHandler) RemoveItem(c echo.Context) error {
	sess, index, err := h.sessionItem(c)
	if err != nil {
		return err
	}

	if err := sess.Editor.RemoveItem(index); err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, sess)
}

// SetOrderDiscount handles PUT /api/sessions/:id/discount
func (h *SessionHandler) SetOrderDiscount(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	req, err := bindDiscount(c, "handler.SetOrderDiscount")
	if err != nil {
		return err
	}

	if req.Percent != nil {
		err = sess.Editor.SetOrderDiscountPercent(*req.Percent)
	} else {
		err = sess.Editor.SetOrderDiscount(*req.Amount)
	}
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, sess)
}

// SetItemDiscount handles PUT /api/sessions/:id/items/:index/discount
func (h *SessionHandler) SetItemDiscount(c echo.Context) error {
	sess, index, err := h.sessionItem(c)
	if err != nil {
		return err
	}

	req, err := bindDiscount(c, "handler.SetItemDiscount")
	if err != nil {
		return err
	}

	if req.Percent != nil {
		err = sess.Editor.SetItemDiscountPercent(index, *req.Percent)
	} else {
		err = sess.Editor.SetItemDiscount(index, *req.Amount)
	}
	if err != nil {
		return err
	}
	return h.respond(c, http.StatusOK, sess)
}

// Commit handles POST /api/sessions/:id/commit
func (h *SessionHandler) Commit(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	req, err := h.orders.Commit(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, req)
}

// Close handles DELETE /api/sessions/:id
func (h *SessionHandler) Close(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}

	if err := h.orders.Close(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) session(c echo.Context) (*service.Session, error) {
	id, err := sessionID(c)
	if err != nil {
		return nil, err
	}
	return h.orders.Get(c.Request().Context(), id)
}

func (h *SessionHandler) sessionItem(c echo.Context) (*service.Session, int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return nil, 0, domain.NewValidationError("handler.ItemIndex", "index", "index must be a whole number")
	}

	sess, err := h.session(c)
	if err != nil {
		return nil, 0, err
	}
	return sess, index, nil
}

func (h *SessionHandler) respond(c echo.Context, status int, sess *service.Session) error {
	a, err := sess.Editor.Totals()
	if err != nil {
		return err
	}

	return c.JSON(status, SessionResponse{
		ID:         sess.ID,
		OrderID:    sess.Editor.OrderID(),
		Direction:  sess.Editor.Direction(),
		Mode:       sess.Editor.Mode(),
		Items:      sess.Editor.Items(),
		Allocation: a,
		Totals:     pricing.Totals(a),
		LastUsed:   sess.LastUsed,
	})
}

func sessionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("handler.SessionID", "id", "id must be a UUID")
	}
	return id, nil
}

func bindDiscount(c echo.Context, op string) (discountRequest, error) {
	var req discountRequest
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	if (req.Amount == nil) == (req.Percent == nil) {
		return req, domain.Invalid(op, "Provide either amount or percent")
	}
	return req, nil
}
