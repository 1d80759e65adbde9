package modules

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"credora/crypto"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
)

// ModuleError carries a JSON-RPC error together with the HTTP status the
// transport should respond with.
type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(msg string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: msg, Data: data}
}

func serverError(msg string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: msg, Data: data}
}

func parseAddress(field, raw string) (crypto.Address, *ModuleError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, invalidParams(fmt.Sprintf("%s required", field), nil)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, *ModuleError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams(fmt.Sprintf("%s required", field), nil)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams(fmt.Sprintf("invalid %s", field), raw)
	}
	if value.Sign() < 0 {
		return nil, invalidParams(fmt.Sprintf("%s must not be negative", field), raw)
	}
	return value, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
