package queue

import (
	"fmt"

	"github.com/phambaophuc/uploads-im-client/internal/models"
)

// GetQueueStats reports how many upload events are waiting and how many
// watchers are attached.
func (q *QueueService) GetQueueStats() (map[string]interface{}, error) {
	q.mu.Lock()
	info, err := q.channel.QueueInspect(q.queueName)
	q.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to inspect queue %s: %w", q.queueName, err)
	}

	return map[string]interface{}{
		"queue":          info.Name,
		"pending_events": info.Messages,
		"watchers":       info.Consumers,
	}, nil
}

func (q *QueueService) HealthCheck() string {
	switch {
	case q.conn != nil && q.conn.IsClosed():
		return models.StatusUnhealthy + ": connection closed"
	case q.channel == nil:
		return models.StatusUnhealthy + ": channel not available"
	}
	return models.StatusHealthy
}
