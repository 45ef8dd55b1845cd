package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/assetdesk/internal/models"
	"github.com/spf13/viper"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// RunResult is the response of a manual run.
type RunResult struct {
	Schedule *models.ReportSchedule `json:"schedule"`
	Outcome  struct {
		ScheduleID string           `json:"schedule_id"`
		Trigger    string           `json:"trigger"`
		Status     models.RunStatus `json:"status"`
		Error      string           `json:"error"`
		StartedAt  time.Time        `json:"started_at"`
		FinishedAt time.Time        `json:"finished_at"`
	} `json:"outcome"`
}

// NewClient reads api_url and token from viper (ASSETDESK_API_URL, ASSETDESK_TOKEN or
// ~/.assetdesk.yaml).
func NewClient() (*Client, error) {
	baseURL := viper.GetString("api_url")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return New(baseURL, viper.GetString("token")), nil
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // run-now waits for delivery
		},
	}
}

func (c *Client) Login(username, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(http.MethodPost, "/api/v1/auth/login", nil, body, &result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func (c *Client) ListSchedules(enabled *bool, reportType string) ([]models.ReportSchedule, error) {
	query := url.Values{}
	if enabled != nil {
		query.Set("enabled", strconv.FormatBool(*enabled))
	}
	if reportType != "" {
		query.Set("report_type", reportType)
	}

	var schedules []models.ReportSchedule
	if err := c.do(http.MethodGet, "/api/v1/schedules", query, nil, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (c *Client) GetSchedule(id string) (*models.ReportSchedule, error) {
	var schedule models.ReportSchedule
	if err := c.do(http.MethodGet, "/api/v1/schedules/"+id, nil, nil, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *Client) CreateSchedule(input *models.ScheduleInput) (*models.ReportSchedule, error) {
	var schedule models.ReportSchedule
	if err := c.do(http.MethodPost, "/api/v1/schedules", nil, input, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *Client) UpdateSchedule(id string, input *models.ScheduleInput) (*models.ReportSchedule, error) {
	var schedule models.ReportSchedule
	if err := c.do(http.MethodPut, "/api/v1/schedules/"+id, nil, input, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *Client) DeleteSchedule(id string) error {
	return c.do(http.MethodDelete, "/api/v1/schedules/"+id, nil, nil, nil)
}

func (c *Client) SetEnabled(id string, enabled bool) (*models.ReportSchedule, error) {
	action := "disable"
	if enabled {
		action = "enable"
	}
	var schedule models.ReportSchedule
	if err := c.do(http.MethodPut, fmt.Sprintf("/api/v1/schedules/%s/%s", id, action), nil, nil, &schedule); err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (c *Client) RunSchedule(id string) (*RunResult, error) {
	var result RunResult
	if err := c.do(http.MethodPost, fmt.Sprintf("/api/v1/schedules/%s/run", id), nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListRuns(id string, limit int) ([]models.ReportRun, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var runs []models.ReportRun
	if err := c.do(http.MethodGet, fmt.Sprintf("/api/v1/schedules/%s/runs", id), query, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func (c *Client) do(method, endpoint string, query url.Values, data, v interface{}) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %v", err)
	}
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("API error: %s", errResp.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}
