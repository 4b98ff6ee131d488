package http

import (
	"context"
	"errors"
	"net/http"

	appexchange "main/internal/application/service/exchange"
	appusers "main/internal/application/service/users"
	domainexchange "main/internal/domain/entity/exchange"
	domainusers "main/internal/domain/entity/users"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type instrumentPayload struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

type amountPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

type quantityAmountPayload struct {
	InstrumentUID string          `json:"instrument_uid"`
	Amount        decimal.Decimal `json:"amount"`
}

type orderPayload struct {
	InstrumentUID string          `json:"instrument_uid"`
	Side          string          `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
}

func (p orderPayload) toRequest(userUID uuid.UUID) (appexchange.PlaceOrderRequest, error) {
	instrumentUID, err := uuid.Parse(p.InstrumentUID)
	if err != nil {
		return appexchange.PlaceOrderRequest{}, errMissingInstrument
	}
	return appexchange.PlaceOrderRequest{
		UserUID:       userUID,
		InstrumentUID: instrumentUID,
		Side:          domainexchange.OrderSide(p.Side),
		Price:         p.Price,
		Quantity:      p.Quantity,
	}, nil
}

// orderResult is the place-order response: the final order state and the
// trades the matching pass produced.
type orderResult struct {
	Order  *domainexchange.Order  `json:"order"`
	Trades []domainexchange.Trade `json:"trades"`
}

type statsSnapshotPayload struct {
	InstrumentUID string `json:"instrument_uid"`
	RunUID        string `json:"run_uid"`
}

func (p statsSnapshotPayload) parse() (uuid.UUID, uuid.UUID, error) {
	instrumentUID, err := uuid.Parse(p.InstrumentUID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errMissingInstrument
	}
	runUID, err := uuid.Parse(p.RunUID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("run_uid is required")
	}
	return instrumentUID, runUID, nil
}

type statResult struct {
	InstrumentUID uuid.UUID       `json:"instrument_uid"`
	Value         decimal.Decimal `json:"value"`
}

func (h *Handler) handleStat(c *gin.Context, fn func(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error)) {
	instrumentUID, err := parseUUIDQuery(c, "instrument_uid")
	if err != nil {
		writeError(c, http.StatusBadRequest, errMissingInstrument)
		return
	}
	value, err := fn(c.Request.Context(), instrumentUID)
	if err != nil {
		writeError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, statResult{InstrumentUID: instrumentUID, Value: value})
}

func parseUIDParam(c *gin.Context) (uuid.UUID, error) {
	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		return uuid.Nil, errMissingUID
	}
	return uid, nil
}

func parseUUIDQuery(c *gin.Context, key string) (uuid.UUID, error) {
	value := c.Query(key)
	if value == "" {
		return uuid.Nil, errors.New(key + " query param required")
	}
	return uuid.Parse(value)
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusForError maps service errors to HTTP statuses. Settlement
// failures are 422 because the request was well formed but the ledger
// state rejected it; lock timeouts are 409 so clients know to retry.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domainexchange.ErrInstrumentNotFound),
		errors.Is(err, domainexchange.ErrOrderNotFound),
		errors.Is(err, domainexchange.ErrMissingBalance),
		errors.Is(err, domainusers.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainexchange.ErrInvalidInstrument),
		errors.Is(err, domainexchange.ErrInsufficientCash),
		errors.Is(err, domainexchange.ErrInsufficientQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainexchange.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, domainusers.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, appusers.ErrInvalidCredentials),
		errors.Is(err, appusers.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, appusers.ErrEmailRequired),
		errors.Is(err, appusers.ErrPasswordTooShort),
		errors.Is(err, appexchange.ErrInvalidSide),
		errors.Is(err, appexchange.ErrNonPositivePrice),
		errors.Is(err, appexchange.ErrNonPositiveQuantity),
		errors.Is(err, appexchange.ErrNegativeAmount),
		errors.Is(err, appexchange.ErrInstrumentNameRequired),
		errors.Is(err, appexchange.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
