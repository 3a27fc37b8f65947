package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia/guardian-recovery-backend/api"
	"github.com/custodia/guardian-recovery-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// RecoveryClient implements api.RecoveryProvider over HTTP.
type RecoveryClient struct {
	// ServerAddr is the base URL of the recovery server.
	ServerAddr string

	// HTTPClient defaults to http.DefaultClient when nil.
	HTTPClient *http.Client
}

func (c *RecoveryClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *RecoveryClient) do(method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("could not request recovery endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil || errBody.Error == "" {
			return fmt.Errorf("recovery endpoint returned %d", resp.StatusCode)
		}
		return fmt.Errorf("recovery endpoint returned %d: %s", resp.StatusCode, errBody.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("could not parse recovery response: %w", err)
		}
	}
	return nil
}

// Initiate opens a recovery session for the owner.
func (c *RecoveryClient) Initiate(req *api.InitiateRecoveryRequest) (*api.SessionResponse, error) {
	var session api.SessionResponse
	url := fmt.Sprintf("%s/api/recovery/initiate", c.ServerAddr)
	if err := c.do(http.MethodPost, url, req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// SubmitShare records a guardian's encrypted share for the session.
func (c *RecoveryClient) SubmitShare(sessionID string, req *api.SubmitShareRequest) (*api.SessionResponse, error) {
	var session api.SessionResponse
	url := fmt.Sprintf("%s/api/recovery/%s/share", c.ServerAddr, sessionID)
	if err := c.do(http.MethodPost, url, req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Readiness reports whether the session is executable.
func (c *RecoveryClient) Readiness(sessionID string) (*api.ReadinessResponse, error) {
	var readiness api.ReadinessResponse
	url := fmt.Sprintf("%s/api/recovery/%s/readiness", c.ServerAddr, sessionID)
	if err := c.do(http.MethodGet, url, nil, &readiness); err != nil {
		return nil, err
	}
	return &readiness, nil
}

// TimeRemaining reports the session's outstanding time lock.
func (c *RecoveryClient) TimeRemaining(sessionID string) (*api.TimeRemainingResponse, error) {
	var remaining api.TimeRemainingResponse
	url := fmt.Sprintf("%s/api/recovery/%s/remaining", c.ServerAddr, sessionID)
	if err := c.do(http.MethodGet, url, nil, &remaining); err != nil {
		return nil, err
	}
	return &remaining, nil
}

// Execute reconstructs the secret from the collected shares.
func (c *RecoveryClient) Execute(sessionID string) (*api.ExecuteResponse, error) {
	var result api.ExecuteResponse
	url := fmt.Sprintf("%s/api/recovery/%s/execute", c.ServerAddr, sessionID)
	if err := c.do(http.MethodPost, url, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel aborts the session.
func (c *RecoveryClient) Cancel(sessionID string, req *api.CancelRequest) (*api.SessionResponse, error) {
	var session api.SessionResponse
	url := fmt.Sprintf("%s/api/recovery/%s/cancel", c.ServerAddr, sessionID)
	if err := c.do(http.MethodPost, url, req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Session fetches a session by id.
func (c *RecoveryClient) Session(sessionID string) (*api.SessionResponse, error) {
	var session api.SessionResponse
	url := fmt.Sprintf("%s/api/recovery/%s", c.ServerAddr, sessionID)
	if err := c.do(http.MethodGet, url, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSession fetches the owner's active session, if any.
func (c *RecoveryClient) ActiveSession(owner interfaces.AccountAddress) (*api.SessionResponse, error) {
	var session api.SessionResponse
	url := fmt.Sprintf("%s/api/recovery/active/%s", c.ServerAddr, owner)
	if err := c.do(http.MethodGet, url, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// MockRecoveryProvider implements a mock api.RecoveryProvider for testing.
type MockRecoveryProvider struct {
	mock.Mock
}

// Initiate implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) Initiate(req *api.InitiateRecoveryRequest) (*api.SessionResponse, error) {
	args := m.Called(req)
	return args.Get(0).(*api.SessionResponse), args.Error(1)
}

// SubmitShare implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) SubmitShare(sessionID string, req *api.SubmitShareRequest) (*api.SessionResponse, error) {
	args := m.Called(sessionID, req)
	return args.Get(0).(*api.SessionResponse), args.Error(1)
}

// Readiness implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) Readiness(sessionID string) (*api.ReadinessResponse, error) {
	args := m.Called(sessionID)
	return args.Get(0).(*api.ReadinessResponse), args.Error(1)
}

// TimeRemaining implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) TimeRemaining(sessionID string) (*api.TimeRemainingResponse, error) {
	args := m.Called(sessionID)
	return args.Get(0).(*api.TimeRemainingResponse), args.Error(1)
}

// Execute implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) Execute(sessionID string) (*api.ExecuteResponse, error) {
	args := m.Called(sessionID)
	return args.Get(0).(*api.ExecuteResponse), args.Error(1)
}

// Cancel implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) Cancel(sessionID string, req *api.CancelRequest) (*api.SessionResponse, error) {
	args := m.Called(sessionID, req)
	return args.Get(0).(*api.SessionResponse), args.Error(1)
}

// Session implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) Session(sessionID string) (*api.SessionResponse, error) {
	args := m.Called(sessionID)
	return args.Get(0).(*api.SessionResponse), args.Error(1)
}

// ActiveSession implements the RecoveryProvider interface for testing.
func (m *MockRecoveryProvider) ActiveSession(owner interfaces.AccountAddress) (*api.SessionResponse, error) {
	args := m.Called(owner)
	return args.Get(0).(*api.SessionResponse), args.Error(1)
}
