package zhipu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantSubstr []string
	}{
		{
			name:       "without code",
			err:        &APIError{StatusCode: 401, Message: "invalid token"},
			wantSubstr: []string{"401", "invalid token"},
		},
		{
			name:       "with code",
			err:        &APIError{StatusCode: 429, Code: "1302", Message: "rate limited"},
			wantSubstr: []string{"429", "1302", "rate limited"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.wantSubstr {
				assert.Contains(t, errStr, substr)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &NetworkError{Op: "sending request", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "sending request")
	assert.Contains(t, err.Error(), "refused")
}

func TestConfigError_IsAuthError(t *testing.T) {
	var err error = &ConfigError{Reason: "api key is empty"}
	var target *ConfigError
	assert.ErrorAs(t, err, &target)
	assert.Contains(t, err.Error(), "api key is empty")
}
