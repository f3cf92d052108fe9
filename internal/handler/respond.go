package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/boutique-checkout/internal/domain/auth"
	"github.com/xenking/boutique-checkout/internal/domain/cart"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/order"
	"github.com/xenking/boutique-checkout/internal/domain/pricing"
	"github.com/xenking/boutique-checkout/internal/domain/product"
)

const maxBodySize = 1 << 20

var (
	errRouteNotFound    = errors.New("route not found")
	errMethodNotAllowed = errors.New("method not allowed")
	errCouponNotFound   = errors.New("coupon does not exist")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Money fields are validated by value, so gte/lte tags apply to them.
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validationError carries per-field messages for a rejected request body.
type validationError struct {
	msg    string
	fields map[string]string
	err    error
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return e.err }

// decodeBody decodes and validates a JSON body into dst. An empty body
// fails with a validationError wrapping io.EOF.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &validationError{msg: "invalid request body: " + err.Error(), err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate")
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = fieldMessage(fe)
		}
		return &validationError{msg: "validation failed", fields: fields}
	}
	return nil
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "is invalid"
}

// errorBody is the error envelope of every non-2xx response.
type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Threshold *float64          `json:"threshold,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// classify maps a domain error to its HTTP status and envelope.
func classify(err error) (int, errorBody) {
	var (
		verr        *validationError
		belowMin    *coupon.BelowMinimumError
		storage     *coupon.StorageError
		unavailable *cart.UnavailableError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Code: "invalid_request", Message: verr.msg, Fields: verr.fields}
	case errors.Is(err, errInvalidSession):
		return http.StatusBadRequest, errorBody{Code: "invalid_session", Message: err.Error()}

	case errors.Is(err, pricing.ErrEmptyCart):
		return http.StatusUnprocessableEntity, errorBody{Code: "empty_cart", Message: "your cart is empty"}
	case errors.Is(err, coupon.ErrEmptyCode):
		return http.StatusUnprocessableEntity, errorBody{Code: "empty_code", Message: "please enter a coupon code"}
	case errors.Is(err, coupon.ErrNotFound):
		return http.StatusUnprocessableEntity, errorBody{Code: "not_found", Message: "this coupon code is not valid"}
	case errors.Is(err, coupon.ErrExpired):
		return http.StatusUnprocessableEntity, errorBody{Code: "expired", Message: "this coupon has expired"}
	case errors.Is(err, coupon.ErrUsageExceeded):
		return http.StatusUnprocessableEntity, errorBody{Code: "usage_exceeded", Message: "this coupon has reached its usage limit"}
	case errors.As(err, &belowMin):
		threshold := belowMin.Threshold.InexactFloat64()
		return http.StatusUnprocessableEntity, errorBody{
			Code:      "below_minimum",
			Message:   fmt.Sprintf("a minimum purchase of %s is required for this coupon", belowMin.Threshold.StringFixed(2)),
			Threshold: &threshold,
		}
	case errors.As(err, &storage):
		return http.StatusServiceUnavailable, errorBody{Code: "coupon_unavailable", Message: "coupons cannot be checked right now, please try again"}
	case errors.Is(err, coupon.ErrMalformed):
		return http.StatusBadRequest, errorBody{Code: "invalid_coupon", Message: err.Error()}
	case errors.Is(err, coupon.ErrCodeTaken):
		return http.StatusConflict, errorBody{Code: "code_taken", Message: "a coupon with this code already exists"}
	case errors.Is(err, errCouponNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "coupon not found"}

	case errors.As(err, &unavailable):
		return http.StatusUnprocessableEntity, errorBody{Code: "product_unavailable", Message: unavailable.Error()}
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "product not found"}
	case errors.Is(err, cart.ErrInvalidQuantity):
		return http.StatusBadRequest, errorBody{Code: "invalid_quantity", Message: err.Error()}
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, errorBody{Code: "item_not_found", Message: err.Error()}

	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: "order not found"}
	case errors.Is(err, order.ErrInvalidStatus):
		return http.StatusBadRequest, errorBody{Code: "invalid_status", Message: err.Error()}
	case errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Code: "invalid_transition", Message: "only pending orders can be accepted or rejected"}

	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing or invalid API key"}
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, errorBody{Code: "forbidden", Message: err.Error()}

	case errors.Is(err, errRouteNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()}
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed, errorBody{Code: "method_not_allowed", Message: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal server error"}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, r, status, body)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Failed to encode response", zap.Error(err))
	}
}
