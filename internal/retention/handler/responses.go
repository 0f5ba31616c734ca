package handler

import (
	"time"

	"custodian/internal/retention/models"
)

type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

// RunResponse is the wire form of a retention run audit record.
type RunResponse struct {
	ID                 string           `json:"id"`
	TenantID           string           `json:"tenant_id"`
	StartedAt          time.Time        `json:"started_at"`
	FinishedAt         *time.Time       `json:"finished_at,omitempty"`
	Status             string           `json:"status"`
	EventRetentionDays int              `json:"event_retention_days"`
	RawIPRetentionDays int              `json:"raw_ip_retention_days"`
	EventCutoff        time.Time        `json:"event_cutoff"`
	RawIPCutoff        time.Time        `json:"raw_ip_cutoff"`
	DatasetCounts      map[string]int64 `json:"dataset_counts"`
	Error              string           `json:"error,omitempty"`
}

func fromRun(run *models.RetentionRun) RunResponse {
	return RunResponse{
		ID:                 run.ID.String(),
		TenantID:           run.TenantID,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
		Status:             string(run.Status),
		EventRetentionDays: run.EventRetentionDays,
		RawIPRetentionDays: run.RawIPRetentionDays,
		EventCutoff:        run.EventCutoff,
		RawIPCutoff:        run.RawIPCutoff,
		DatasetCounts:      run.DatasetCounts,
		Error:              run.Error,
	}
}

func fromRuns(runs []*models.RetentionRun) []RunResponse {
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, fromRun(run))
	}
	return out
}
