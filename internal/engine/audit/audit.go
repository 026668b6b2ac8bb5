// internal/engine/audit/audit.go

// Package audit writes delivery outcomes to Elasticsearch for offline
// inspection. The sink is best-effort: index failures are logged and never
// surface into the delivery path.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"subtrack-notifier/internal/common/logger"
	"subtrack-notifier/internal/engine/notifier"
)

const indexTimeout = 5 * time.Second

// Sink indexes one document per delivery outcome into a daily index.
type Sink struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSink(client *elasticsearch.Client, index string, log logger.Logger) *Sink {
	return &Sink{
		client: client,
		index:  index,
		logger: log,
	}
}

// Record implements notifier.AuditSink.
func (s *Sink) Record(ctx context.Context, outcome notifier.Outcome) {
	body, err := json.Marshal(outcome)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to marshal delivery outcome for audit", nil)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	res, err := s.client.Index(
		s.indexName(outcome.Timestamp),
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to index delivery outcome", map[string]interface{}{
			"tenantId": outcome.TenantID,
			"entityId": outcome.EntityID,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Warn("Elasticsearch rejected delivery outcome", map[string]interface{}{
			"status":   res.Status(),
			"tenantId": outcome.TenantID,
		})
	}
}

func (s *Sink) indexName(ts time.Time) string {
	return fmt.Sprintf("%s-%s", s.index, ts.UTC().Format("2006.01.02"))
}
