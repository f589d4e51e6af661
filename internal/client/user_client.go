// internal/client/user_client.go

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"cadet-chat-service/internal/identity"
)

// userClient implements identity.Directory against the user service.
type userClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewUserClient(baseURL string, timeout time.Duration, logger *zap.Logger) identity.Directory {
	return &userClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *userClient) FindUser(ctx context.Context, userID int64) (*identity.UserRecord, error) {
	endpoint := fmt.Sprintf("%s/users/%d", c.baseURL, userID)

	var user identity.UserRecord
	status, err := c.do(ctx, http.MethodGet, endpoint, nil, &user)
	if status == http.StatusNotFound {
		return nil, identity.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *userClient) FindUsers(ctx context.Context, userIDs []int64) ([]identity.UserRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/users/batch", c.baseURL)

	var users []identity.UserRecord
	if _, err := c.do(ctx, http.MethodPost, endpoint, map[string]interface{}{"user_ids": userIDs}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *userClient) ListScope(ctx context.Context, scopeID *int64, excludeID int64) ([]identity.UserRecord, error) {
	query := url.Values{}
	query.Set("exclude", strconv.FormatInt(excludeID, 10))
	if scopeID != nil {
		query.Set("college_id", strconv.FormatInt(*scopeID, 10))
	}
	endpoint := fmt.Sprintf("%s/users?%s", c.baseURL, query.Encode())

	var users []identity.UserRecord
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// do sends the request and decodes the data field of the response envelope into out.
func (c *userClient) do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("user service call",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("user service error: status=%d, body=%s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success {
		msg := "unknown error"
		if env.Error != nil {
			msg = env.Error.Message
		}
		return resp.StatusCode, fmt.Errorf("user service error: %s", msg)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response data: %w", err)
	}
	return resp.StatusCode, nil
}
