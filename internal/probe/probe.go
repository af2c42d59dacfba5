package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vcprobe/internal/config"
	"vcprobe/internal/vco"

	"go.uber.org/zap"
)

// Category is the monitoring category tag emitted when the credential
// has monitoring permission.
const Category = "VeloCloudAPI"

// Outcome is the result of a probe that ran to completion.
type Outcome struct {
	Success    bool
	Diagnostic string
}

// Run performs the full probe: login, enterprise-ID resolution, one
// metrics query, logout. A returned error is an unrecoverable setup
// failure (the caller exits 1); any failure past setup lands in the
// Outcome instead.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Outcome, error) {
	client, err := vco.NewClient(&cfg.VCO, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create VCO client: %w", err)
	}

	if err := client.Login(ctx); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	defer client.Logout(ctx)

	ids, err := resolveEnterpriseIDs(ctx, client, cfg, logger)
	if err != nil {
		return nil, err
	}

	window := timeWindow(time.Now(), time.Duration(cfg.Probe.IntervalMinutes)*time.Minute)
	logger.Info("Querying aggregate edge link metrics",
		zap.Int("enterprise_id", ids[0]),
		zap.Int64("start", window.Start),
		zap.Int64("end", window.End),
	)

	data, err := client.GetAggregateEdgeLinkMetrics(ctx, ids[0], window, cfg.Probe.Metrics)
	if err != nil {
		logger.Warn("Metrics query failed", zap.Error(err))
		return &Outcome{Diagnostic: fmt.Sprintf("metrics query failed: %v", err)}, nil
	}

	ok, diag := classifyMetricsResponse(data)
	if !ok {
		logger.Warn("Permission check failed", zap.String("diagnostic", diag))
	}
	return &Outcome{Success: ok, Diagnostic: diag}, nil
}

// resolveEnterpriseIDs returns the configured enterprise IDs, or
// discovers them from the Orchestrator: network scope first, partner
// scope when the network call is refused.
func resolveEnterpriseIDs(ctx context.Context, client *vco.Client, cfg *config.Config, logger *zap.Logger) ([]int, error) {
	if len(cfg.VCO.EnterpriseIDs) > 0 {
		return cfg.VCO.EnterpriseIDs, nil
	}

	enterprises, err := client.GetNetworkEnterprises(ctx)
	if err != nil {
		logger.Info("Network enterprise discovery refused, trying partner scope", zap.Error(err))
		enterprises, err = client.GetEnterpriseProxyEnterprises(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("enterprise discovery failed: %w", err)
	}
	if len(enterprises) == 0 {
		return nil, fmt.Errorf("no enterprise IDs configured and none discoverable")
	}

	ids := make([]int, len(enterprises))
	for i, e := range enterprises {
		ids[i] = e.ID
	}
	logger.Info("Discovered enterprises", zap.Int("count", len(ids)))
	return ids, nil
}

// timeWindow computes the metrics query interval ending at now.
func timeWindow(now time.Time, interval time.Duration) vco.Interval {
	return vco.Interval{
		Start: now.Add(-interval).UnixMilli(),
		End:   now.UnixMilli(),
	}
}

// classifyMetricsResponse decides whether the metrics response proves
// monitoring permission. A JSON array does; an error envelope or
// anything non-JSON (the Orchestrator serves its login page as HTML to
// unauthenticated callers) does not.
func classifyMetricsResponse(data []byte) (bool, string) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false, "empty metrics response"
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err == nil {
		return true, ""
	}

	if msg, ok := vco.APIErrorMessage(trimmed); ok {
		return false, fmt.Sprintf("metrics query rejected: %s", msg)
	}

	if trimmed[0] == '<' {
		return false, "metrics query returned HTML instead of JSON (session not accepted?)"
	}

	return false, "metrics query returned an unexpected response shape"
}
