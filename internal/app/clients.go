package app

import (
	"fmt"
	"os"
	"strings"

	redisclient "github.com/yungbote/courseware-backend/internal/clients/redis"
	"github.com/yungbote/courseware-backend/internal/logger"
)

type Clients struct {
	Redis *redisclient.Client
}

// wireClients connects shared infrastructure clients. Redis is optional: with
// no REDIS_ADDR the tree cache and publish bus degrade to in-process only.
func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	var rc *redisclient.Client
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		c, err := redisclient.New(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis client: %w", err)
		}
		rc = c
	}

	return Clients{Redis: rc}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
