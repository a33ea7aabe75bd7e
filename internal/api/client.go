package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

const requestTimeout = 10 * time.Second

const refreshPath = "/auth/refresh"

// Client is a bearer-authenticated HTTP client for the marketplace API.
// When a request comes back 401 it refreshes the token pair once and
// retries; concurrent callers share a single in-flight refresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *log.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	refreshing   chan struct{}
	refreshErr   error
}

func NewClient(baseURL string, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		log: logger,
	}
}

func (c *Client) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

type serverMessage struct {
	Message string `json:"message"`
}

// roundTrip performs one HTTP exchange. A non-2xx response is returned as an
// *ApiError carrying the server's message when the body has one.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any, token string) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var sm serverMessage
		json.NewDecoder(resp.Body).Decode(&sm)
		return newApiError(resp.StatusCode, sm.Message)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do wraps roundTrip with the 401-refresh-retry policy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	err := c.roundTrip(ctx, method, path, query, body, out, c.AccessToken())
	if !IsStatus(err, http.StatusUnauthorized) || path == refreshPath {
		return err
	}

	c.mu.Lock()
	hasRefresh := c.refreshToken != ""
	c.mu.Unlock()
	if !hasRefresh {
		return err
	}

	if err := c.refresh(ctx); err != nil {
		return err
	}
	return c.roundTrip(ctx, method, path, query, body, out, c.AccessToken())
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh exchanges the refresh token for a new pair. Only one exchange runs
// at a time; late callers wait for it and share its outcome.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshing != nil {
		ch := c.refreshing
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		c.mu.Lock()
		err := c.refreshErr
		c.mu.Unlock()
		return err
	}

	ch := make(chan struct{})
	c.refreshing = ch
	refreshToken := c.refreshToken
	c.mu.Unlock()

	var pair TokenPair
	err := c.roundTrip(ctx, http.MethodPost, refreshPath, nil, refreshRequest{RefreshToken: refreshToken}, &pair, "")
	if err != nil {
		err = fmt.Errorf("refresh token: %w", err)
	}

	c.mu.Lock()
	if err == nil {
		c.accessToken = pair.AccessToken
		c.refreshToken = pair.RefreshToken
	}
	c.refreshErr = err
	c.refreshing = nil
	c.mu.Unlock()
	close(ch)

	if err != nil {
		c.log.Printf("token refresh failed: %v", err)
	}
	return err
}

type LoginResponse struct {
	User         types.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and stores the issued tokens
// on the client.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password}, &resp); err != nil {
		return LoginResponse{}, err
	}

	c.SetTokens(resp.AccessToken, resp.RefreshToken)
	return resp, nil
}

// UsersByRole lists the users holding the given role.
func (c *Client) UsersByRole(ctx context.Context, role types.UserRole) ([]types.User, error) {
	query := url.Values{}
	query.Set("role", string(role))

	var users []types.User
	if err := c.do(ctx, http.MethodGet, "/users/by-role", query, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Conversation fetches the message history between the two users. A body
// that is not a list is treated as an empty history rather than an error.
func (c *Client) Conversation(ctx context.Context, userId, recipientId string) ([]types.Message, error) {
	query := url.Values{}
	query.Set("userId", userId)
	query.Set("recipientId", recipientId)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/messages/conversation", query, nil, &raw); err != nil {
		return nil, err
	}

	var messages []types.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		c.log.Printf("conversation response is not a list, defaulting to empty")
		return []types.Message{}, nil
	}
	if messages == nil {
		messages = []types.Message{}
	}
	return messages, nil
}

// UpdateMessage edits a message's mutable fields.
func (c *Client) UpdateMessage(ctx context.Context, messageId string, update types.MessageUpdate) (types.Message, error) {
	var msg types.Message
	if err := c.do(ctx, http.MethodPatch, "/messages/"+messageId, nil, update, &msg); err != nil {
		return types.Message{}, err
	}
	return msg, nil
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageId string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+messageId, nil, nil, nil)
}

// Projects lists the caller's projects.
func (c *Client) Projects(ctx context.Context) ([]types.Project, error) {
	var projects []types.Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

type BidRequest struct {
	ProjectId    string  `json:"projectId"`
	Amount       float64 `json:"amount"`
	CoverLetter  string  `json:"coverLetter"`
	DeliveryTime string  `json:"deliveryTime"`
}

// CreateBid places a bid on a project.
func (c *Client) CreateBid(ctx context.Context, bid BidRequest) (types.Bid, error) {
	var created types.Bid
	if err := c.do(ctx, http.MethodPost, "/bids", nil, bid, &created); err != nil {
		return types.Bid{}, err
	}
	return created, nil
}

// BidsForProject lists the bids placed on a project.
func (c *Client) BidsForProject(ctx context.Context, projectId string) ([]types.Bid, error) {
	var bids []types.Bid
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectId+"/bids", nil, nil, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// Contracts lists the caller's contracts.
func (c *Client) Contracts(ctx context.Context) ([]types.Contract, error) {
	var contracts []types.Contract
	if err := c.do(ctx, http.MethodGet, "/contracts", nil, nil, &contracts); err != nil {
		return nil, err
	}
	return contracts, nil
}

type contractStageRequest struct {
	Stage types.ContractStage `json:"stage"`
}

// UpdateContractStage advances a contract to the given stage.
func (c *Client) UpdateContractStage(ctx context.Context, contractId string, stage types.ContractStage) (types.Contract, error) {
	var contract types.Contract
	if err := c.do(ctx, http.MethodPatch, "/contracts/"+contractId, nil, contractStageRequest{Stage: stage}, &contract); err != nil {
		return types.Contract{}, err
	}
	return contract, nil
}
