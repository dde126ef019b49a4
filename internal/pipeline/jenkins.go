// Package pipeline triggers the external CI pipeline that provisions zone
// infrastructure. Only the trigger protocol lives here; the pipeline's own
// steps and retries are opaque.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bndr/gojenkins"
)

var ErrNotConfigured = errors.New("jenkins is not configured")

// Trigger starts one pipeline run with the given parameters.
type Trigger interface {
	Trigger(ctx context.Context, params Params) error
}

type Config struct {
	URL            string `mapstructure:"url"`
	Username       string `mapstructure:"username"`
	Token          string `mapstructure:"token"`
	TokenSecretARN string `mapstructure:"token_secret_arn"`
	PipelineName   string `mapstructure:"pipeline_name"`
}

func (c Config) Configured() bool {
	return c.URL != "" && c.PipelineName != "" && c.Username != "" && c.Token != ""
}

type JenkinsTrigger struct {
	cfg        Config
	httpClient *http.Client

	mu     sync.Mutex
	client *gojenkins.Jenkins
}

func NewJenkinsTrigger(cfg Config) *JenkinsTrigger {
	return &JenkinsTrigger{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (j *JenkinsTrigger) Configured() bool {
	return j.cfg.Configured()
}

func (j *JenkinsTrigger) connect(ctx context.Context) (*gojenkins.Jenkins, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.client != nil {
		return j.client, nil
	}
	if !j.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	client, err := gojenkins.CreateJenkins(j.httpClient, j.cfg.URL, j.cfg.Username, j.cfg.Token).Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to jenkins: %w", err)
	}
	j.client = client
	return client, nil
}

func (j *JenkinsTrigger) Trigger(ctx context.Context, params Params) error {
	client, err := j.connect(ctx)
	if err != nil {
		return err
	}

	slog.Info("Triggering pipeline", "pipeline", j.cfg.PipelineName, "parameters", paramNames(params))
	queueID, err := client.BuildJob(ctx, j.cfg.PipelineName, params)
	if err != nil {
		slog.Error("Error triggering pipeline", "pipeline", j.cfg.PipelineName, "error", err)
		return fmt.Errorf("trigger pipeline %s: %w", j.cfg.PipelineName, err)
	}

	slog.Info("Pipeline triggered", "pipeline", j.cfg.PipelineName, "queue_id", queueID)
	return nil
}

func paramNames(params Params) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
