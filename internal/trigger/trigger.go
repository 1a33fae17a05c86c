// Package trigger acquires a fresh access token and asks Power BI to refresh
// a dataset or dataflow. The same core serves callers that hold credentials
// (Client) and callers that resolve them from a secret store per call.
package trigger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvcrn/pbi-refresh/internal/credentials"
	"github.com/dvcrn/pbi-refresh/internal/powerbi"
)

// TokenAcquirer exchanges credentials for an access token
type TokenAcquirer interface {
	AcquireToken(ctx context.Context, creds credentials.Credentials) (string, error)
}

// Refresher sends a refresh request using an access token
type Refresher interface {
	Refresh(ctx context.Context, token string, target powerbi.Target) (*powerbi.RefreshResult, error)
}

// Trigger holds no per-call state and is safe for concurrent use.
type Trigger struct {
	tokens TokenAcquirer
	api    Refresher
	ids    *idGenerator
	logger zerolog.Logger
}

func New(tokens TokenAcquirer, api Refresher, logger zerolog.Logger) *Trigger {
	return &Trigger{
		tokens: tokens,
		api:    api,
		ids:    newIDGenerator(),
		logger: logger,
	}
}

// Refresh acquires a new token for creds and requests a refresh of target.
// If no token can be acquired the refresh request is never sent. The result
// is non-nil whenever Power BI answered, including non-2xx answers, which
// come back alongside a *powerbi.StatusError.
func (t *Trigger) Refresh(ctx context.Context, creds credentials.Credentials, target powerbi.Target) (*powerbi.RefreshResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	id := t.ids.New()
	log := t.logger.With().
		Str("trigger_id", id).
		Str("kind", string(target.Kind)).
		Str("workspace_id", target.WorkspaceID).
		Str("resource_id", target.ResourceID).
		Logger()
	ctx = log.WithContext(ctx)

	token, err := t.tokens.AcquireToken(ctx, creds)
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire access token")
		return nil, fmt.Errorf("failed to acquire access token: %w", err)
	}

	result, err := t.api.Refresh(ctx, token, target)
	if result != nil {
		result.TriggerID = id
	}
	return result, err
}

// WithCredentials returns a Client bound to creds
func (t *Trigger) WithCredentials(creds credentials.Credentials) *Client {
	return &Client{trigger: t, creds: creds}
}

// Client refreshes Power BI resources with a fixed set of credentials.
// A token is still acquired for every call.
type Client struct {
	trigger *Trigger
	creds   credentials.Credentials
}

func (c *Client) RefreshDataset(ctx context.Context, workspaceID, datasetID string) (*powerbi.RefreshResult, error) {
	return c.trigger.Refresh(ctx, c.creds, powerbi.DatasetTarget(workspaceID, datasetID))
}

func (c *Client) RefreshDataflow(ctx context.Context, workspaceID, dataflowID string) (*powerbi.RefreshResult, error) {
	return c.trigger.Refresh(ctx, c.creds, powerbi.DataflowTarget(workspaceID, dataflowID))
}

// RefreshFromStore resolves credentials from store, then refreshes target.
// A failed lookup returns a *credentials.ResolveError and neither the token
// nor the refresh request is sent. Invalid targets are rejected before any
// lookup.
func RefreshFromStore(ctx context.Context, t *Trigger, store credentials.SecretStore, target powerbi.Target) (*powerbi.RefreshResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	creds, err := credentials.Resolve(ctx, store)
	if err != nil {
		return nil, err
	}
	return t.Refresh(ctx, creds, target)
}

func RefreshDataset(ctx context.Context, t *Trigger, store credentials.SecretStore, workspaceID, datasetID string) (*powerbi.RefreshResult, error) {
	return RefreshFromStore(ctx, t, store, powerbi.DatasetTarget(workspaceID, datasetID))
}

func RefreshDataflow(ctx context.Context, t *Trigger, store credentials.SecretStore, workspaceID, dataflowID string) (*powerbi.RefreshResult, error) {
	return RefreshFromStore(ctx, t, store, powerbi.DataflowTarget(workspaceID, dataflowID))
}
