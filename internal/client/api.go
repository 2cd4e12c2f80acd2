package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/presence-service/internal/api/dto"
	"github.com/spec-kit/presence-service/internal/domain"
)

// API is the HTTP surface of the backend as seen by the controller.
type API interface {
	Signup(ctx context.Context, fullName, email, password, bio string) (*domain.PublicUser, string, error)
	Login(ctx context.Context, email, password string) (*domain.PublicUser, string, error)
	Check(ctx context.Context, token string) (*domain.PublicUser, error)
	UpdateProfile(ctx context.Context, token, fullName, bio, profilePic string) (*domain.PublicUser, error)
}

// HTTPAPI talks to the backend over plain HTTP/JSON.
type HTTPAPI struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAPI builds an API client for the given base address.
func NewHTTPAPI(baseURL string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *HTTPAPI) Signup(ctx context.Context, fullName, email, password, bio string) (*domain.PublicUser, string, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/auth/signup", "", dto.SignupRequest{
		FullName: fullName, Email: email, Password: password, Bio: bio,
	})
	if err != nil {
		return nil, "", err
	}
	return env.UserData, env.Token, nil
}

func (a *HTTPAPI) Login(ctx context.Context, email, password string) (*domain.PublicUser, string, error) {
	env, err := a.do(ctx, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{
		Email: email, Password: password,
	})
	if err != nil {
		return nil, "", err
	}
	return env.UserData, env.Token, nil
}

func (a *HTTPAPI) Check(ctx context.Context, token string) (*domain.PublicUser, error) {
	env, err := a.do(ctx, http.MethodGet, "/api/auth/check", token, nil)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *HTTPAPI) UpdateProfile(ctx context.Context, token, fullName, bio, profilePic string) (*domain.PublicUser, error) {
	env, err := a.do(ctx, http.MethodPut, "/api/auth/update-profile", token, dto.UpdateProfileRequest{
		FullName: fullName, Bio: bio, ProfilePic: profilePic,
	})
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (a *HTTPAPI) do(ctx context.Context, method, path, token string, payload any) (*dto.Envelope, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env dto.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Message != "" {
			return nil, errors.New(env.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return &env, nil
}
