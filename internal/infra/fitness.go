package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

// Firestore defaults for the fitness document.
const (
	DefaultFirestoreBaseURL = "https://firestore.googleapis.com/v1"
	DefaultFitnessProject   = "totalcontrol-240ec"
	DefaultFitnessColl      = "fitness_daily"
	DefaultFitnessUser      = "rhodes"

	fitnessTimeout = 10 * time.Second
)

// FirestoreConfig locates the daily fitness document.
type FirestoreConfig struct {
	BaseURL    string
	Project    string
	Collection string
	User       string
}

// FirestoreSource fetches daily totals from a Firestore REST document
// named <user>_<day>.
type FirestoreSource struct {
	cfg    FirestoreConfig
	client *retryablehttp.Client
	logger *zap.Logger
}

// NewFirestoreSource creates a source with a bounded-retry HTTP client.
func NewFirestoreSource(cfg FirestoreConfig, logger *zap.Logger) *FirestoreSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFirestoreBaseURL
	}
	if cfg.Project == "" {
		cfg.Project = DefaultFitnessProject
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultFitnessColl
	}
	if cfg.User == "" {
		cfg.User = DefaultFitnessUser
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = fitnessTimeout

	return &FirestoreSource{cfg: cfg, client: client, logger: logger}
}

// DocumentURL returns the document address for day.
func (s *FirestoreSource) DocumentURL(day string) string {
	return fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s/%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		url.PathEscape(s.cfg.Project),
		url.PathEscape(s.cfg.Collection),
		url.PathEscape(s.cfg.User+"_"+day))
}

// FetchProgress returns the day's steps and workout minutes. A missing
// document is zero progress, not an error.
func (s *FirestoreSource) FetchProgress(ctx context.Context, day string) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, fitnessTimeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.DocumentURL(day), nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch fitness document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		s.logger.Debug("no fitness document for day", zap.String("day", day))
		return 0, 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("fetch fitness document: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, 0, err
	}
	if !gjson.ValidBytes(body) {
		return 0, 0, fmt.Errorf("fetch fitness document: invalid json")
	}

	steps := gjson.GetBytes(body, "fields.steps.integerValue").Int()
	workout := gjson.GetBytes(body, "fields.workout_mins.integerValue").Int()
	return int(steps), int(workout), nil
}

var _ domain.ProgressSource = (*FirestoreSource)(nil)
