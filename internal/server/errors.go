package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/lexora/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/lexora/internal/payment/domain"
	subscriptiondomain "github.com/smallbiznis/lexora/internal/subscription/domain"
	usagedomain "github.com/smallbiznis/lexora/internal/usage/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// abortWithError maps domain sentinels onto HTTP statuses.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal_error"

	switch {
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound):
		status = http.StatusNotFound
		kind = "not_found"

	case errors.Is(err, subscriptiondomain.ErrCompanyExists):
		status = http.StatusConflict
		kind = "conflict"

	case errors.Is(err, usagedomain.ErrInsufficientUnits):
		status = http.StatusUnprocessableEntity
		kind = "insufficient_units"

	case errors.Is(err, usagedomain.ErrConcurrentUpdate):
		status = http.StatusConflict
		kind = "concurrent_update"

	case errors.Is(err, paymentdomain.ErrRefundExceedsPayment):
		status = http.StatusUnprocessableEntity
		kind = "refund_exceeds_payment"

	case errors.Is(err, subscriptiondomain.ErrInvalidCompany),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingUnit),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingInterval),
		errors.Is(err, subscriptiondomain.ErrInvalidUnitsPerPeriod),
		errors.Is(err, subscriptiondomain.ErrInvalidPeriod),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotActive),
		errors.Is(err, usagedomain.ErrInvalidUnits),
		errors.Is(err, invoicedomain.ErrInvalidInvoice),
		errors.Is(err, paymentdomain.ErrInvalidEvent),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrInvalidSignature):
		status = http.StatusBadRequest
		kind = "invalid_request"
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: errorPayload{
		Type:    kind,
		Message: err.Error(),
	}})
}
