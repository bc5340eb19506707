package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sarthakj/practiq/internal/assessment"
	"github.com/sarthakj/practiq/internal/config"
	"github.com/sarthakj/practiq/internal/grade"
	"github.com/sarthakj/practiq/internal/learner"
	"github.com/sarthakj/practiq/internal/mastery"
	"github.com/sarthakj/practiq/internal/questionbank"
	"github.com/sarthakj/practiq/internal/recommend"
	"github.com/sarthakj/practiq/internal/session"
	"github.com/sarthakj/practiq/internal/store"
)

// engine bundles the wired components behind every command.
type engine struct {
	cfg      config.Config
	store    *store.Store
	bank     *questionbank.Bank
	agg      *mastery.Aggregator
	coord    *session.Coordinator
	assessor *assessment.Assessor
	ranker   *recommend.Ranker
	log      *slog.Logger
}

// openEngine builds the full component graph for one command run.
func openEngine(cmd *cobra.Command) (*engine, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cmd)}))

	bank := questionbank.SeedBank(cfg.QuestionsPerConcept)
	agg := mastery.NewAggregator()
	rules := cfg.Rules()

	coord := session.NewCoordinator(bank, agg, st, rules, cfg.SessionOptions())
	assessor := assessment.NewAssessor(bank, st, coord.Guard(), rules, assessment.Options{
		ProbesPerGrade: cfg.ProbesPerGrade,
		InactivityTTL:  cfg.SessionOptions().InactivityTTL,
	})
	ranker := recommend.NewRanker(cfg.Recommend(), agg)

	log.Debug("engine ready", "db", dbPath)
	return &engine{
		cfg:      cfg,
		store:    st,
		bank:     bank,
		agg:      agg,
		coord:    coord,
		assessor: assessor,
		ranker:   ranker,
		log:      log,
	}, nil
}

func (e *engine) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Error("close store", "error", err)
	}
}

// learnerProfile resolves --learner to a profile, creating one with the
// --grade starting level on first use.
func (e *engine) learnerProfile(ctx context.Context, cmd *cobra.Command) (*learner.Profile, error) {
	name, _ := cmd.Flags().GetString("learner")
	if name == "" {
		return nil, errors.New("--learner is required")
	}

	p, err := e.store.ProfileByName(ctx, name)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	gradeFlag, _ := cmd.Flags().GetString("grade")
	g, err := grade.Parse(gradeFlag)
	if err != nil {
		return nil, err
	}
	p = &learner.Profile{
		ID:            uuid.NewString(),
		Name:          name,
		Grade:         g,
		LearningStyle: learner.StyleBalanced,
	}
	if err := e.store.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	e.log.Info("learner created", "name", name, "grade", g.String())
	return p, nil
}

// hydrateMastery loads the learner's persisted mastery into the
// in-memory aggregator.
func (e *engine) hydrateMastery(ctx context.Context, learnerID string) error {
	records, err := e.store.MasteryRecords(ctx, learnerID)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		e.agg.Load(learnerID, records)
	}
	return nil
}

func logLevel(cmd *cobra.Command) slog.Level {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
