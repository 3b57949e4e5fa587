package audit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV1"
	"github.com/rs/zerolog"

	"github.com/agromano/identity-gate/internal/logger"
)

// Alerter reports an operational problem to a human.
type Alerter interface {
	Alert(ctx context.Context, title, text string) error
}

// LogAlerter writes alerts to the error log.
type LogAlerter struct {
	log zerolog.Logger
}

// NewLogAlerter creates the alerter on the component logger.
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{log: logger.Component("audit")}
}

// Alert implements Alerter.
func (a *LogAlerter) Alert(_ context.Context, title, text string) error {
	a.log.Error().Str("alert", title).Msg(text)
	return nil
}

// DataDogAlerter posts alerts as DataDog events.
type DataDogAlerter struct {
	api     *datadogV1.EventsApi
	cfg     logger.DataDog
	service string
}

// NewDataDogAlerter creates an events API client for cfg.Site.
func NewDataDogAlerter(cfg logger.DataDog, service string) *DataDogAlerter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	ddCfg := datadog.NewConfiguration()
	ddCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &DataDogAlerter{
		api:     datadogV1.NewEventsApi(datadog.NewAPIClient(ddCfg)),
		cfg:     cfg,
		service: service,
	}
}

// Alert implements Alerter.
func (a *DataDogAlerter) Alert(ctx context.Context, title, text string) error {
	ctx = context.WithValue(ctx, datadog.ContextAPIKeys, map[string]datadog.APIKey{
		"apiKeyAuth": {Key: a.cfg.APIKey},
	})

	if a.cfg.Site != "" {
		ctx = context.WithValue(ctx, datadog.ContextServerVariables, map[string]string{"site": a.cfg.Site})
	}

	tags := append([]string{"service:" + a.service}, a.cfg.Tags...)

	_, _, err := a.api.CreateEvent(ctx, datadogV1.EventCreateRequest{
		Title:     title,
		Text:      text,
		Tags:      tags,
		AlertType: datadogV1.EVENTALERTTYPE_ERROR.Ptr(),
	})
	if err != nil {
		return fmt.Errorf("failed to post datadog event: %w", err)
	}

	return nil
}
