package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/persistence"
)

// ContentsClient is the slice of the GitHub contents API the store uses.
type ContentsClient interface {
	GetFile(ctx context.Context, path string) (*persistence.FileContents, error)
	PutFile(ctx context.Context, path string, req persistence.PutFileRequest) (string, error)
	Ping(ctx context.Context) error
}

// GitHubStore keeps the document in a repository file. The blob sha is the
// version token and every write presents the sha it was based on.
type GitHubStore struct {
	client        ContentsClient
	path          string
	commitMessage string
	logger        *zap.Logger
}

// NewGitHubStore returns a store for path inside the client's repository.
func NewGitHubStore(client ContentsClient, path, commitMessage string, logger *zap.Logger) *GitHubStore {
	if commitMessage == "" {
		commitMessage = "Update users"
	}
	return &GitHubStore{client: client, path: strings.Trim(path, "/"), commitMessage: commitMessage, logger: logger}
}

func (s *GitHubStore) ReadAll(ctx context.Context) (Snapshot, error) {
	file, err := s.client.GetFile(ctx, s.path)
	if errors.Is(err, persistence.ErrGitHubNotFound) {
		return s.initialize(ctx)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("github read %s: %w", s.path, err)
	}

	return s.snapshot(file)
}

func (s *GitHubStore) WriteAll(ctx context.Context, accounts []domain.Account, expectedVersion string) (string, error) {
	payload, err := EncodeAccounts(accounts)
	if err != nil {
		return "", err
	}

	sha := expectedVersion
	if sha == "" {
		// GitHub refuses updates without a sha, so an unconditional write uses the current one.
		file, err := s.client.GetFile(ctx, s.path)
		switch {
		case err == nil:
			sha = file.SHA
		case !errors.Is(err, persistence.ErrGitHubNotFound):
			return "", fmt.Errorf("github write %s: %w", s.path, err)
		}
	}

	newSHA, err := s.client.PutFile(ctx, s.path, persistence.PutFileRequest{
		Message: s.commitMessage,
		Content: base64.StdEncoding.EncodeToString(payload),
		SHA:     sha,
	})
	if errors.Is(err, persistence.ErrGitHubConflict) {
		return "", fmt.Errorf("%w: %v", ErrVersionConflict, err)
	}
	if err != nil {
		return "", fmt.Errorf("github write %s: %w", s.path, err)
	}
	return newSHA, nil
}

func (s *GitHubStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *GitHubStore) initialize(ctx context.Context) (Snapshot, error) {
	sha, err := s.client.PutFile(ctx, s.path, persistence.PutFileRequest{
		Message: "Initialize " + s.path,
		Content: base64.StdEncoding.EncodeToString(emptyDocument),
	})
	if errors.Is(err, persistence.ErrGitHubConflict) {
		// created concurrently by another writer
		file, getErr := s.client.GetFile(ctx, s.path)
		if getErr != nil {
			return Snapshot{}, fmt.Errorf("github read %s: %w", s.path, getErr)
		}
		return s.snapshot(file)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("github initialize %s: %w", s.path, err)
	}

	s.logger.Info("initialized account document", zap.String("path", s.path), zap.String("sha", sha))
	return Snapshot{Accounts: []domain.Account{}, Version: sha}, nil
}

func (s *GitHubStore) snapshot(file *persistence.FileContents) (Snapshot, error) {
	raw, err := decodeContent(file)
	if err != nil {
		return Snapshot{}, fmt.Errorf("github read %s: %w", s.path, err)
	}
	accounts, err := DecodeAccounts(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("github read %s: %w", s.path, err)
	}
	return Snapshot{Accounts: accounts, Version: file.SHA}, nil
}

func decodeContent(file *persistence.FileContents) ([]byte, error) {
	if file.Encoding != "" && file.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q", file.Encoding)
	}
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(file.Content)
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return raw, nil
}
