package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/oauth2"

	"github.com/beekhof/crm-records/internal/auth"
	"github.com/beekhof/crm-records/internal/config"
	"github.com/beekhof/crm-records/internal/maintenance"
	"github.com/beekhof/crm-records/internal/records"
	"github.com/beekhof/crm-records/internal/store"
)

var errNoUser = errors.New("no user selected: pass --user or set USER_ID")

// openStore opens the document store selected by the configuration. The
// caller closes it.
func (a *app) openStore() (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch a.cfg.StoreDriver {
	case config.DriverSQLite:
		s, err = store.OpenSQLite(a.cfg.StorePath)
	default:
		s, err = store.OpenMemStore(a.cfg.StorePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store at %s: %w", a.cfg.StoreDriver, a.cfg.StorePath, err)
	}
	a.logger.Debug("store opened", "driver", a.cfg.StoreDriver, "path", a.cfg.StorePath)
	return s, nil
}

func (a *app) clients(s store.Store) *records.ClientService {
	return records.NewClientService(s, records.WithLogger(a.logger))
}

func (a *app) events(s store.Store) *records.EventService {
	return records.NewEventService(s, records.WithLogger(a.logger))
}

func (a *app) cleaner(s store.Store) *maintenance.Cleaner {
	return maintenance.NewCleaner(s,
		maintenance.WithWorkers(a.cfg.MaintenanceWorkers),
		maintenance.WithLogger(a.logger),
	)
}

func (a *app) userID() (string, error) {
	if a.cfg.UserID == "" {
		return "", errNoUser
	}
	return a.cfg.UserID, nil
}

// authorizer builds the Google OAuth session. The token lives in TokenPath
// when configured, otherwise in the settings collection of s.
func (a *app) authorizer(s store.Store, consent auth.ConsentFunc) (*auth.Authorizer, error) {
	clientID, clientSecret, err := a.cfg.OAuthClient()
	if err != nil {
		return nil, fmt.Errorf("failed to load Google credentials: %w", err)
	}

	googleOAuthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "http://127.0.0.1:8080", // Will be updated dynamically by auth flow
		Scopes: []string{
			"https://www.googleapis.com/auth/calendar",
			"https://www.googleapis.com/auth/calendar.events",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}

	var tokens auth.TokenStore
	if a.cfg.TokenPath != "" {
		tokens = auth.NewFileTokenStore(a.cfg.TokenPath)
	} else {
		tokens = auth.NewDocumentTokenStore(s)
	}

	opts := []auth.Option{auth.WithLogger(a.logger)}
	if consent != nil {
		opts = append(opts, auth.WithConsent(consent))
	}
	return auth.NewAuthorizer(googleOAuthConfig, tokens, opts...), nil
}

func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
