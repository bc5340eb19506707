// Package config loads and validates engine tuning. Settings come from
// an optional JSON file validated against an embedded schema, with a
// small set of environment overrides on top.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sarthakj/practiq/internal/grade"
	"github.com/sarthakj/practiq/internal/recommend"
	"github.com/sarthakj/practiq/internal/rewards"
	"github.com/sarthakj/practiq/internal/session"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Config is the full tuning surface of the engine.
type Config struct {
	// Reward calculation.
	GroupSize             int   `json:"groupSize"`
	TokensPerGroup        int   `json:"tokensPerGroup"`
	PerfectBonus          int   `json:"perfectBonus"`
	ExpectedQuestionCount int   `json:"expectedQuestionCount"`
	StreakMilestones      []int `json:"streakMilestones"`
	StreakBonusTokens     int   `json:"streakBonusTokens"`
	TimeMilestonesMinutes []int `json:"timeMilestonesMinutes"`
	TimeBonusTokens       int   `json:"timeBonusTokens"`

	// Placement assessment.
	AssessmentBonus int `json:"assessmentBonus"`
	ProbesPerGrade  int `json:"probesPerGrade"`

	// Session lifecycle.
	SessionInactivityTTLSeconds int `json:"sessionInactivityTtlSeconds"`
	RecentHistoryTail           int `json:"recentHistoryTail"`

	// Recommendation thresholds.
	RemediateThreshold              float64 `json:"remediateThreshold"`
	ReviewThreshold                 float64 `json:"reviewThreshold"`
	AdvanceThreshold                float64 `json:"advanceThreshold"`
	SpacedRepetitionIntervalSeconds int     `json:"spacedRepetitionIntervalSeconds"`
	ChallengeGap                    int     `json:"challengeGap"`

	// GradeAdvancementTokenThresholds maps a target grade ("1".."6") to
	// the lifetime token balance that unlocks it.
	GradeAdvancementTokenThresholds map[string]int `json:"gradeAdvancementTokenThresholds"`

	// Question bank seeding.
	QuestionsPerConcept int `json:"questionsPerConcept"`
}

// Default returns the engine's built-in tuning.
func Default() Config {
	return Config{
		GroupSize:                   5,
		TokensPerGroup:              3,
		PerfectBonus:                20,
		ExpectedQuestionCount:       20,
		StreakMilestones:            []int{3, 5, 10, 20},
		StreakBonusTokens:           2,
		TimeMilestonesMinutes:       []int{10, 20, 30},
		TimeBonusTokens:             5,
		AssessmentBonus:             15,
		ProbesPerGrade:              2,
		SessionInactivityTTLSeconds: 1800,
		RecentHistoryTail:           20,
		RemediateThreshold:          40,
		ReviewThreshold:             70,
		AdvanceThreshold:            90,

		SpacedRepetitionIntervalSeconds: int(72 * time.Hour / time.Second),
		ChallengeGap:                    2,
		GradeAdvancementTokenThresholds: map[string]int{
			"1": 50, "2": 120, "3": 210, "4": 320, "5": 450, "6": 600,
		},
		QuestionsPerConcept: 40,
	}
}

// Load builds the effective config: defaults, then the JSON file at
// path (skipped when path is empty or the file does not exist), then
// environment overrides. A .env file in the working directory is read
// first if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file means defaults.
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := validate(raw); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks raw JSON against the embedded schema.
func validate(raw []byte) error {
	schemaOnce.Do(func() {
		var def any
		if err := json.Unmarshal(schemaJSON, &def); err != nil {
			schemaErr = fmt.Errorf("parse embedded schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema://practiq-config.json", def); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, schemaErr = c.Compile("schema://practiq-config.json")
	})
	if schemaErr != nil {
		return schemaErr
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// applyEnv layers PRACTIQ_* environment overrides onto cfg.
func applyEnv(cfg *Config) {
	envInt("PRACTIQ_GROUP_SIZE", &cfg.GroupSize)
	envInt("PRACTIQ_TOKENS_PER_GROUP", &cfg.TokensPerGroup)
	envInt("PRACTIQ_PERFECT_BONUS", &cfg.PerfectBonus)
	envInt("PRACTIQ_ASSESSMENT_BONUS", &cfg.AssessmentBonus)
	envInt("PRACTIQ_PROBES_PER_GRADE", &cfg.ProbesPerGrade)
	envInt("PRACTIQ_SESSION_TTL_SECONDS", &cfg.SessionInactivityTTLSeconds)
	envInt("PRACTIQ_RECENT_HISTORY_TAIL", &cfg.RecentHistoryTail)
	envInt("PRACTIQ_QUESTIONS_PER_CONCEPT", &cfg.QuestionsPerConcept)
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// check enforces cross-field constraints the schema cannot express.
func (c Config) check() error {
	if c.GroupSize < 1 {
		return fmt.Errorf("groupSize must be at least 1, got %d", c.GroupSize)
	}
	if c.RemediateThreshold > c.ReviewThreshold {
		return fmt.Errorf("remediateThreshold %.0f exceeds reviewThreshold %.0f", c.RemediateThreshold, c.ReviewThreshold)
	}
	if c.ReviewThreshold > c.AdvanceThreshold {
		return fmt.Errorf("reviewThreshold %.0f exceeds advanceThreshold %.0f", c.ReviewThreshold, c.AdvanceThreshold)
	}
	for key := range c.GradeAdvancementTokenThresholds {
		if _, err := grade.Parse(key); err != nil {
			return fmt.Errorf("gradeAdvancementTokenThresholds: %w", err)
		}
	}
	return nil
}

// Rules converts the reward settings to the calculator's form.
func (c Config) Rules() rewards.Rules {
	thresholds := make(map[grade.Grade]int, len(c.GradeAdvancementTokenThresholds))
	for key, tokens := range c.GradeAdvancementTokenThresholds {
		g, err := grade.Parse(key)
		if err != nil {
			continue // rejected by check at load time
		}
		thresholds[g] = tokens
	}
	return rewards.Rules{
		GroupSize:             c.GroupSize,
		TokensPerGroup:        c.TokensPerGroup,
		PerfectBonus:          c.PerfectBonus,
		ExpectedQuestionCount: c.ExpectedQuestionCount,
		AssessmentBonus:       c.AssessmentBonus,
		StreakMilestones:      c.StreakMilestones,
		StreakBonusTokens:     c.StreakBonusTokens,
		TimeMilestonesMinutes: c.TimeMilestonesMinutes,
		TimeBonusTokens:       c.TimeBonusTokens,
		GradeTokenThresholds:  thresholds,
	}
}

// Recommend converts the ranking settings to the ranker's form.
func (c Config) Recommend() recommend.Config {
	return recommend.Config{
		RemediateThreshold:       c.RemediateThreshold,
		ReviewThreshold:          c.ReviewThreshold,
		AdvanceThreshold:         c.AdvanceThreshold,
		SpacedRepetitionInterval: time.Duration(c.SpacedRepetitionIntervalSeconds) * time.Second,
		ChallengeGap:             c.ChallengeGap,
	}
}

// SessionOptions converts the lifecycle settings to coordinator options.
func (c Config) SessionOptions() session.Options {
	return session.Options{
		InactivityTTL:     time.Duration(c.SessionInactivityTTLSeconds) * time.Second,
		RecentHistoryTail: c.RecentHistoryTail,
	}
}
