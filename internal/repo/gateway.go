package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/faultlinehq/faultline-engine/internal/cache"
	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/utils"
)

// Trace walker failure modes. Callers treat both as "zero resources".
var (
	ErrTraceNotFound    = errors.New("trace not found")
	ErrTraceUnavailable = errors.New("trace service unavailable")
)

// LogLine is a single recent log record for a resource.
type LogLine struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// MetricPoint is a single metric sample for a resource.
type MetricPoint struct {
	Timestamp time.Time
	Metric    string
	Value     float64
}

// Incident describes an active provider-side incident.
type Incident struct {
	Service   string
	Summary   string
	Status    string
	StartedAt time.Time
}

// ChangeEvent describes a recent configuration change in the account.
type ChangeEvent struct {
	Resource  string
	Summary   string
	Actor     string
	ChangedAt time.Time
}

// GatewayConfig holds the endpoints of the observability gateway that fronts
// the cloud provider APIs.
type GatewayConfig struct {
	BaseURL     string
	Timeout     time.Duration
	HealthPath  string
	ChangesPath string
	ConfigPath  string
	LogsPath    string
	MetricsPath string
	TracePath   string
	HealthTTL   time.Duration
	ChangesTTL  time.Duration
}

// GatewayClient wraps the observability gateway endpoints used by the
// evidence collectors and the trace walker. The account-wide lookups
// (provider health, change history) are cached because they are cheap
// cross-run disambiguators.
type GatewayClient struct {
	cfg        GatewayConfig
	httpClient *http.Client
	cache      cache.Provider
}

// NewGatewayClient constructs a client targeting the configured gateway.
func NewGatewayClient(cfg GatewayConfig, cacheProvider cache.Provider) *GatewayClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GatewayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cacheProvider,
	}
}

// ResourceConfig fetches the current configuration document of a resource.
func (c *GatewayClient) ResourceConfig(ctx context.Context, ref models.ResourceRef) (map[string]any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var response struct {
		Config map[string]any `json:"config"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.cfg.ConfigPath), resourcePayload(ref), &response); err != nil {
		return nil, utils.NewAppError("gateway.ResourceConfig", "config request failed", err)
	}
	if len(response.Config) == 0 {
		return nil, fmt.Errorf("gateway returned no configuration for %s", ref)
	}
	return response.Config, nil
}

// RecentLogs fetches the most recent error-leaning log lines of a resource.
func (c *GatewayClient) RecentLogs(ctx context.Context, ref models.ResourceRef) ([]LogLine, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var response struct {
		Lines []struct {
			Timestamp time.Time `json:"timestamp"`
			Level     string    `json:"level"`
			Message   string    `json:"message"`
		} `json:"lines"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.cfg.LogsPath), resourcePayload(ref), &response); err != nil {
		return nil, utils.NewAppError("gateway.RecentLogs", "logs request failed", err)
	}

	lines := make([]LogLine, 0, len(response.Lines))
	for _, l := range response.Lines {
		lines = append(lines, LogLine{Timestamp: l.Timestamp, Level: l.Level, Message: l.Message})
	}
	return lines, nil
}

// MetricSeries fetches core health metrics (errors, throttles, latency) of a resource.
func (c *GatewayClient) MetricSeries(ctx context.Context, ref models.ResourceRef) ([]MetricPoint, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var response struct {
		Series []struct {
			Timestamp time.Time `json:"timestamp"`
			Metric    string    `json:"metric"`
			Value     float64   `json:"value"`
		} `json:"series"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.cfg.MetricsPath), resourcePayload(ref), &response); err != nil {
		return nil, utils.NewAppError("gateway.MetricSeries", "metrics request failed", err)
	}

	points := make([]MetricPoint, 0, len(response.Series))
	for _, s := range response.Series {
		points = append(points, MetricPoint{Timestamp: s.Timestamp, Metric: s.Metric, Value: s.Value})
	}
	return points, nil
}

// WalkTrace expands a distributed trace into the resources it touched.
func (c *GatewayClient) WalkTrace(ctx context.Context, traceID string) ([]models.ResourceRef, error) {
	if err := c.ready(); err != nil {
		return nil, ErrTraceUnavailable
	}

	var response struct {
		Resources []struct {
			Kind   string `json:"kind"`
			Name   string `json:"name"`
			ARN    string `json:"arn"`
			Region string `json:"region"`
		} `json:"resources"`
	}
	err := c.postJSON(ctx, c.resolvePath(c.cfg.TracePath), map[string]any{"trace_id": traceID}, &response)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("trace %s: %w", traceID, ErrTraceNotFound)
		}
		return nil, fmt.Errorf("trace %s: %w: %v", traceID, ErrTraceUnavailable, err)
	}

	refs := make([]models.ResourceRef, 0, len(response.Resources))
	for _, r := range response.Resources {
		refs = append(refs, models.ResourceRef{
			Kind:   models.ResourceKind(r.Kind),
			Name:   r.Name,
			ARN:    r.ARN,
			Region: r.Region,
		})
	}
	return refs, nil
}

// ActiveIncidents reports provider-side incidents on any service. Results are
// cached for a short TTL; provider status moves slowly relative to runs.
func (c *GatewayClient) ActiveIncidents(ctx context.Context) ([]Incident, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	const cacheKey = "gateway:provider-health"
	var incidents []Incident
	if hit, err := c.cache.Get(ctx, cacheKey); err == nil {
		if json.Unmarshal(hit, &incidents) == nil {
			return incidents, nil
		}
	}

	var response struct {
		Incidents []struct {
			Service   string    `json:"service"`
			Summary   string    `json:"summary"`
			Status    string    `json:"status"`
			StartedAt time.Time `json:"started_at"`
		} `json:"incidents"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.cfg.HealthPath), map[string]any{}, &response); err != nil {
		return nil, utils.NewAppError("gateway.ActiveIncidents", "provider health request failed", err)
	}

	incidents = make([]Incident, 0, len(response.Incidents))
	for _, in := range response.Incidents {
		incidents = append(incidents, Incident{
			Service:   in.Service,
			Summary:   in.Summary,
			Status:    in.Status,
			StartedAt: in.StartedAt,
		})
	}

	if payload, err := json.Marshal(incidents); err == nil {
		_ = c.cache.Set(ctx, cacheKey, payload, c.cfg.HealthTTL)
	}
	return incidents, nil
}

// ChangeEvents reports recent configuration changes for the given resources.
func (c *GatewayClient) ChangeEvents(ctx context.Context, refs []models.ResourceRef) ([]ChangeEvent, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.String())
	}
	cacheKey := "gateway:changes:" + strings.Join(names, ",")

	var events []ChangeEvent
	if hit, err := c.cache.Get(ctx, cacheKey); err == nil {
		if json.Unmarshal(hit, &events) == nil {
			return events, nil
		}
	}

	var response struct {
		Events []struct {
			Resource  string    `json:"resource"`
			Summary   string    `json:"summary"`
			Actor     string    `json:"actor"`
			ChangedAt time.Time `json:"changed_at"`
		} `json:"events"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.cfg.ChangesPath), map[string]any{"resources": names}, &response); err != nil {
		return nil, utils.NewAppError("gateway.ChangeEvents", "change history request failed", err)
	}

	events = make([]ChangeEvent, 0, len(response.Events))
	for _, e := range response.Events {
		events = append(events, ChangeEvent{
			Resource:  e.Resource,
			Summary:   e.Summary,
			Actor:     e.Actor,
			ChangedAt: e.ChangedAt,
		})
	}

	if payload, err := json.Marshal(events); err == nil {
		_ = c.cache.Set(ctx, cacheKey, payload, c.cfg.ChangesTTL)
	}
	return events, nil
}

var errNotFound = errors.New("not found")

func (c *GatewayClient) ready() error {
	if c == nil {
		return fmt.Errorf("gateway client not initialised")
	}
	if c.cfg.BaseURL == "" {
		return fmt.Errorf("gateway base URL not configured")
	}
	return nil
}

func resourcePayload(ref models.ResourceRef) map[string]any {
	return map[string]any{
		"kind":   string(ref.Kind),
		"name":   ref.Name,
		"arn":    ref.ARN,
		"region": ref.Region,
	}
}

func (c *GatewayClient) resolvePath(p string) string {
	if c.cfg.BaseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return c.cfg.BaseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *GatewayClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("gateway returned %s: %w", resp.Status, errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
