package arm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FatalError marks a failed run precondition: an expired or misissued token,
// an invalid subscription, or a resource type with no registered API version.
// The driver terminates the run on it instead of producing partial output.
type FatalError struct {
	Reason string
}

func (fatalError *FatalError) Error() string {
	return fatalError.Reason
}

// armError is the nested {error: {code, message}} envelope carried by ARM
// error responses. Codes are matched case-insensitively.
type armError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseArmError(responseBody []byte) armError {
	var envelope struct {
		Error armError `json:"error"`
	}
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return armError{Code: "UnparsableResponse", Message: string(responseBody)}
	}
	return envelope.Error
}

const (
	expiredTokenErrorCode    = "expiredauthenticationtoken"
	expiredTokenMessage      = "the token is expired"
	invalidAudienceMessage   = "invalid audience"
	invalidSubscriptionCode  = "invalidsubscriptionid"
	subscriptionNotFoundCode = "subscriptionnotfound"
)

// classifyError maps an ARM error to the run-terminating taxonomy where it
// applies, and to a plain error otherwise.
func classifyError(err armError) error {
	errorCode := strings.ToLower(err.Code)
	errorMessage := strings.ToLower(err.Message)

	if errorCode == expiredTokenErrorCode || strings.Contains(errorMessage, expiredTokenMessage) {
		return &FatalError{Reason: "the provided token has expired"}
	}

	if strings.Contains(errorMessage, invalidAudienceMessage) {
		return &FatalError{Reason: "the provided token has an invalid audience"}
	}

	if errorCode == invalidSubscriptionCode || errorCode == subscriptionNotFoundCode {
		return &FatalError{Reason: "the passed subscription is invalid"}
	}

	return fmt.Errorf("management API error %s: %s", err.Code, err.Message)
}
