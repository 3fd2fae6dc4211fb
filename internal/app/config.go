package app

import (
	"strings"
	"time"

	"github.com/yungbote/courseware-backend/internal/logger"
	"github.com/yungbote/courseware-backend/internal/utils"
)

type Config struct {
	ServiceName    string
	Port           string
	AllowOrigins   []string
	JWTSecretKey   string
	AccessTokenTTL time.Duration

	SeedCourseFile string

	DefaultCourseTimezone string
	PartitionSeed         string
	StateWriteRetries     int
	GraderCPUMillis       int
	GraderMemBytes        int
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	origins := strings.Split(utils.GetEnv("ALLOW_ORIGINS", "http://localhost:3000", log), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return Config{
		ServiceName:           "courseware-backend",
		Port:                  utils.GetEnv("PORT", "8080", log),
		AllowOrigins:          origins,
		JWTSecretKey:          jwtSecretKey,
		AccessTokenTTL:        time.Duration(accessTokenTTLSeconds) * time.Second,
		SeedCourseFile:        utils.GetEnv("SEED_COURSE_FILE", "", log),
		DefaultCourseTimezone: utils.GetEnv("DEFAULT_COURSE_TIMEZONE", "UTC", log),
		PartitionSeed:         utils.GetEnv("PARTITION_SEED", "courseware-partition-seed", log),
		StateWriteRetries:     utils.GetEnvAsInt("STATE_WRITE_RETRIES", 5, log),
		GraderCPUMillis:       utils.GetEnvAsInt("GRADER_SANDBOX_CPU_MS", 100, log),
		GraderMemBytes:        utils.GetEnvAsInt("GRADER_SANDBOX_MEM_BYTES", 1<<20, log),
	}
}
