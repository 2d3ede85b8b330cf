package practice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/soyeahso/billable/internal/domain"
)

const defaultClioBaseURL = "https://app.clio.com/api/v4"

// ClioRegistry is an HTTP client for the Clio practice-management API.
type ClioRegistry struct {
	baseURL string
	client  *http.Client
}

// NewClioRegistry creates a Clio client authenticating with the given
// bearer token.
func NewClioRegistry(baseURL, accessToken string) *ClioRegistry {
	if baseURL == "" {
		baseURL = defaultClioBaseURL
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = 30 * time.Second
	return &ClioRegistry{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *ClioRegistry) Name() string { return "clio" }

func (c *ClioRegistry) FindClient(ctx context.Context, q ClientQuery) (*domain.Client, error) {
	term := q.Term()
	if term == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", term)
	params.Set("fields", "id,name,primary_email_address")

	var resp struct {
		Data []clioContact `json:"data"`
	}
	if err := c.get(ctx, "/contacts.json", params, &resp); err != nil {
		return nil, fmt.Errorf("searching contacts: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].toClient(), nil
}

func (c *ClioRegistry) CreateClient(ctx context.Context, in domain.Client) (*domain.Client, error) {
	body := map[string]any{
		"data": map[string]any{
			"name": in.Name,
			"type": "Person",
			"email_addresses": []map[string]any{
				{"name": "Work", "address": in.Email, "default_email": true},
			},
		},
	}

	var resp struct {
		Data clioContact `json:"data"`
	}
	if err := c.post(ctx, "/contacts.json", body, &resp); err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}
	return resp.Data.toClient(), nil
}

func (c *ClioRegistry) FindMatters(ctx context.Context, f MatterFilter) ([]domain.Matter, error) {
	params := url.Values{}
	params.Set("fields", "id,display_number,description,status")
	if f.ClientID != "" {
		params.Set("client_id", f.ClientID)
	}
	if f.Keyword != "" {
		params.Set("query", f.Keyword)
	}

	var resp struct {
		Data []clioMatter `json:"data"`
	}
	if err := c.get(ctx, "/matters.json", params, &resp); err != nil {
		return nil, fmt.Errorf("searching matters: %w", err)
	}

	matters := make([]domain.Matter, 0, len(resp.Data))
	for _, m := range resp.Data {
		matters = append(matters, *m.toMatter())
	}
	return matters, nil
}

func (c *ClioRegistry) CreateMatter(ctx context.Context, in domain.Matter) (*domain.Matter, error) {
	data := map[string]any{
		"description": in.Description,
		"status":      "Open",
	}
	if in.ClientID != "" {
		if id, err := strconv.ParseInt(in.ClientID, 10, 64); err == nil {
			data["client"] = map[string]any{"id": id}
		}
	}

	var resp struct {
		Data clioMatter `json:"data"`
	}
	if err := c.post(ctx, "/matters.json", map[string]any{"data": data}, &resp); err != nil {
		return nil, fmt.Errorf("creating matter: %w", err)
	}
	return resp.Data.toMatter(), nil
}

func (c *ClioRegistry) PostTimeEntry(ctx context.Context, in domain.TimeEntry) (*domain.TimeEntry, error) {
	data := map[string]any{
		"type":     "TimeEntry",
		"date":     in.Date,
		"quantity": in.DurationSeconds,
		"note":     in.Description,
	}
	if in.MatterID != "" {
		if id, err := strconv.ParseInt(in.MatterID, 10, 64); err == nil {
			data["matter"] = map[string]any{"id": id}
		}
	}
	if in.Rate > 0 {
		data["price"] = in.Rate
	}

	var resp struct {
		Data struct {
			ID       int64   `json:"id"`
			Quantity float64 `json:"quantity"`
			Total    float64 `json:"total"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/activities.json", map[string]any{"data": data}, &resp); err != nil {
		return nil, fmt.Errorf("posting time entry: %w", err)
	}

	out := in
	out.ID = strconv.FormatInt(resp.Data.ID, 10)
	if resp.Data.Total > 0 {
		out.Amount = resp.Data.Total
	}
	out.Mock = false
	out.Source = domain.SourceReal
	return &out, nil
}

func (c *ClioRegistry) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *ClioRegistry) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *ClioRegistry) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("clio API error (%d): %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

type clioContact struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	PrimaryEmailAddress string `json:"primary_email_address"`
}

func (c clioContact) toClient() *domain.Client {
	return &domain.Client{
		ID:     strconv.FormatInt(c.ID, 10),
		Name:   c.Name,
		Email:  c.PrimaryEmailAddress,
		Source: domain.SourceReal,
	}
}

type clioMatter struct {
	ID            int64  `json:"id"`
	DisplayNumber string `json:"display_number"`
	Description   string `json:"description"`
	Status        string `json:"status"`
}

func (m clioMatter) toMatter() *domain.Matter {
	return &domain.Matter{
		ID:            strconv.FormatInt(m.ID, 10),
		DisplayNumber: m.DisplayNumber,
		Description:   m.Description,
		Status:        m.Status,
		Source:        domain.SourceReal,
	}
}
