package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
)

var (
	// ErrGitHubNotFound is returned when the file or repository does not exist.
	ErrGitHubNotFound = errors.New("github: not found")
	// ErrGitHubConflict is returned when a write carried a stale or missing sha.
	ErrGitHubConflict = errors.New("github: sha conflict")
)

// TokenSource yields the bearer token for GitHub API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a personal access or fine-grained token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// FileContents is the subset of the contents API response the store needs.
type FileContents struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// PutFileRequest is the body for create/update file contents.
type PutFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type putFileResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

// GitHub is a minimal client for the repository contents API.
type GitHub struct {
	baseURL    string
	owner      string
	repo       string
	branch     string
	tokens     TokenSource
	httpClient *http.Client
}

// NewGitHub builds a client from configuration, choosing app or token auth.
func NewGitHub(cfg config.GitHubConfig, httpClient *http.Client, logger *zap.Logger) (*GitHub, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout()}
	}
	baseURL := strings.TrimRight(cfg.APIURL, "/")

	var tokens TokenSource
	if cfg.UsesApp() {
		signer, err := auth.LoadAppTokenSigner(cfg.AppID, cfg.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		tokens = NewInstallationTokenSource(baseURL, cfg.InstallationID, signer, httpClient)
		logger.Info("github store authenticating as app", zap.Int64("app_id", cfg.AppID), zap.Int64("installation_id", cfg.InstallationID))
	} else {
		tokens = StaticToken(cfg.Token)
	}

	return &GitHub{
		baseURL:    baseURL,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		branch:     cfg.Branch,
		tokens:     tokens,
		httpClient: httpClient,
	}, nil
}

// GetFile fetches a file. It returns ErrGitHubNotFound when the path does not exist.
func (g *GitHub) GetFile(ctx context.Context, path string) (*FileContents, error) {
	endpoint := g.contentsURL(path)
	if g.branch != "" {
		endpoint += "?ref=" + url.QueryEscape(g.branch)
	}

	var out FileContents
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutFile creates or updates a file and returns the new blob sha.
func (g *GitHub) PutFile(ctx context.Context, path string, req PutFileRequest) (string, error) {
	if req.Branch == "" {
		req.Branch = g.branch
	}
	var out putFileResponse
	if err := g.do(ctx, http.MethodPut, g.contentsURL(path), req, &out); err != nil {
		return "", err
	}
	return out.Content.SHA, nil
}

// Ping checks that the repository is reachable with the current credentials.
func (g *GitHub) Ping(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/%s", g.baseURL, url.PathEscape(g.owner), url.PathEscape(g.repo)), nil, nil)
}

func (g *GitHub) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.baseURL, url.PathEscape(g.owner), url.PathEscape(g.repo), strings.Join(segments, "/"))
}

func (g *GitHub) do(ctx context.Context, method, endpoint string, body, out any) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("github token: %w", err)
	}
	return doJSON(ctx, g.httpClient, method, endpoint, "Bearer "+token, body, out)
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, authorization string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrGitHubNotFound
	case resp.StatusCode == http.StatusConflict, resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrGitHubConflict, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= 300:
		return fmt.Errorf("github %s %s: status %d: %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// InstallationTokenSource exchanges app JWTs for installation tokens and caches
// them until shortly before they expire.
type InstallationTokenSource struct {
	baseURL        string
	installationID int64
	signer         *auth.AppTokenSigner
	httpClient     *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewInstallationTokenSource builds a token source for one installation.
func NewInstallationTokenSource(baseURL string, installationID int64, signer *auth.AppTokenSigner, httpClient *http.Client) *InstallationTokenSource {
	return &InstallationTokenSource{
		baseURL:        strings.TrimRight(baseURL, "/"),
		installationID: installationID,
		signer:         signer,
		httpClient:     httpClient,
	}
}

// Token returns a cached installation token or requests a new one.
func (s *InstallationTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Until(s.expiresAt) > time.Minute {
		return s.token, nil
	}

	appJWT, _, err := s.signer.Sign()
	if err != nil {
		return "", err
	}

	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.baseURL, s.installationID)
	if err := doJSON(ctx, s.httpClient, http.MethodPost, endpoint, "Bearer "+appJWT, nil, &out); err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("create installation token: empty token")
	}

	s.token = out.Token
	s.expiresAt = out.ExpiresAt
	return s.token, nil
}
