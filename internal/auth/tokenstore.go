package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/beekhof/crm-records/internal/store"
)

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	SaveToken(ctx context.Context, token *oauth2.Token) error
	// LoadToken returns nil, nil when no token has been saved.
	LoadToken(ctx context.Context) (*oauth2.Token, error)
	ClearToken(ctx context.Context) error
}

// FileTokenStore is a file-based implementation of token storage.
type FileTokenStore struct {
	Path string
}

var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a new FileTokenStore with the given path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{Path: path}
}

// SaveToken saves an OAuth token to the file at store.Path.
func (s *FileTokenStore) SaveToken(_ context.Context, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(s.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// LoadToken loads an OAuth token from the file at store.Path.
// Returns nil, nil if the file does not exist (no error).
func (s *FileTokenStore) LoadToken(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

// ClearToken removes the token file. A missing file is not an error.
func (s *FileTokenStore) ClearToken(_ context.Context) error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// TokenDocumentID is the settings document holding the calendar token.
const TokenDocumentID = "googleAccessToken"

// DocumentTokenStore keeps the token in the settings collection of a
// document store, next to the rest of the dashboard data.
type DocumentTokenStore struct {
	Store store.Store
}

var _ TokenStore = (*DocumentTokenStore)(nil)

// NewDocumentTokenStore creates a DocumentTokenStore backed by s.
func NewDocumentTokenStore(s store.Store) *DocumentTokenStore {
	return &DocumentTokenStore{Store: s}
}

func (s *DocumentTokenStore) SaveToken(ctx context.Context, token *oauth2.Token) error {
	doc := store.Document{
		"accessToken":  token.AccessToken,
		"refreshToken": token.RefreshToken,
		"tokenType":    token.TokenType,
	}
	if !token.Expiry.IsZero() {
		doc["expiry"] = token.Expiry.UTC().Format(time.RFC3339Nano)
	}
	if err := s.Store.Put(ctx, store.Settings, TokenDocumentID, doc); err != nil {
		return fmt.Errorf("failed to write token document: %w", err)
	}
	return nil
}

func (s *DocumentTokenStore) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	doc, err := s.Store.Get(ctx, store.Settings, TokenDocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token document: %w", err)
	}

	token := &oauth2.Token{}
	token.AccessToken, _ = doc["accessToken"].(string)
	token.RefreshToken, _ = doc["refreshToken"].(string)
	token.TokenType, _ = doc["tokenType"].(string)
	if expiry, ok := store.TimeValue(doc["expiry"]); ok {
		token.Expiry = expiry
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, nil
	}
	return token, nil
}

func (s *DocumentTokenStore) ClearToken(ctx context.Context) error {
	if err := s.Store.Delete(ctx, store.Settings, TokenDocumentID); err != nil {
		return fmt.Errorf("failed to delete token document: %w", err)
	}
	return nil
}
