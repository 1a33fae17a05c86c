package server

import "github.com/dvcrn/pbi-refresh/internal/powerbi"

type refreshResponse struct {
	TriggerID   string `json:"trigger_id"`
	Kind        string `json:"kind"`
	WorkspaceID string `json:"workspace_id"`
	ResourceID  string `json:"resource_id"`
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	Succeeded   bool   `json:"succeeded"`
	RequestID   string `json:"request_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newRefreshResponse(result *powerbi.RefreshResult, err error) refreshResponse {
	resp := refreshResponse{
		TriggerID:   result.TriggerID,
		Kind:        string(result.Target.Kind),
		WorkspaceID: result.Target.WorkspaceID,
		ResourceID:  result.Target.ResourceID,
		URL:         result.URL,
		StatusCode:  result.StatusCode,
		Succeeded:   result.Succeeded(),
		RequestID:   result.RequestID,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

type errorResponse struct {
	Error string `json:"error"`
}

type setSecretRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type secretStatus struct {
	Present bool   `json:"present"`
	Length  int    `json:"length,omitempty"`
	Error   string `json:"error,omitempty"`
}

type secretsStatusResponse struct {
	HasCredentials bool                    `json:"has_credentials"`
	Secrets        map[string]secretStatus `json:"secrets"`
}
