package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"canarywatch/internal/alerts"
	"canarywatch/internal/config"
	"canarywatch/internal/engine"
	"canarywatch/internal/learn"
	"canarywatch/internal/logger"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

	scoreFile   = flag.String("score", "", "Score a batch of headlines from a JSON file")
	digestID    = flag.String("digest-feedback", "", "Record feedback for the given digest ID")
	rating      = flag.Int("rating", -1, "Rating 0-10 for -digest-feedback")
	comment     = flag.String("comment", "", "Optional comment for -digest-feedback")
	headlinesIn = flag.String("headlines", "", "JSON file with the digest's headlines, for -digest-feedback")
	articleFile = flag.String("article-feedback", "", "Record article feedback from a JSON file")
	report      = flag.Bool("report", false, "Print the intelligence report")
	alertsFlag  = flag.Bool("alerts", false, "Print urgency escalations by source")
	accuracy    = flag.Bool("accuracy", false, "Print the prediction accuracy report")
	days        = flag.Int("days", 7, "Window in days for -report and -accuracy")
	decay       = flag.Bool("decay", false, "Run the weekly pattern confidence decay pass")
)

// scoreInput is the payload for -score: a shared economic snapshot and the
// headlines collected this run.
type scoreInput struct {
	Economic  models.EconomicSnapshot `json:"economic"`
	Headlines []models.Headline       `json:"headlines"`
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}()

	patterns := learn.NewPatternStore(st, cfg.Patterns)
	keywords := learn.NewKeywordTracker(st, cfg.Learning)
	sources := learn.NewSourceTracker(st, cfg.Sources)
	ingester := learn.NewIngester(st, patterns, keywords, sources, cfg.Learning, cfg.Engine.OutcomeMatchWindow)
	eng := engine.New(st, patterns, keywords, sources, cfg.Engine, cfg.Learning.MinKeywordLength)
	tracker := engine.NewTracker(st)
	reporter := engine.NewReporter(st, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	owner := uuid.NewString()

	switch {
	case *scoreFile != "":
		err = withLock(ctx, st, store.JobDailyCollection, owner, cfg.Locks.Lease, func() error {
			return runScore(ctx, eng, tracker, *scoreFile)
		})
	case *digestID != "":
		err = withLock(ctx, st, store.JobFeedbackSession, owner, cfg.Locks.Lease, func() error {
			return runDigestFeedback(ctx, ingester, *digestID, *rating, *comment, *headlinesIn)
		})
	case *articleFile != "":
		err = withLock(ctx, st, store.JobFeedbackSession, owner, cfg.Locks.Lease, func() error {
			return runArticleFeedback(ctx, ingester, *articleFile)
		})
	case *decay:
		err = withLock(ctx, st, store.JobWeeklyDigest, owner, cfg.Locks.Lease, func() error {
			n, derr := patterns.Decay(ctx)
			if derr != nil {
				return derr
			}
			fmt.Printf("decayed %d stale patterns\n", n)
			return nil
		})
	case *report:
		err = runReport(ctx, reporter, *days)
	case *alertsFlag:
		err = runAlerts(ctx, st, *days)
	case *accuracy:
		err = runAccuracy(ctx, tracker, *days)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, store.ErrJobRunning) {
			logger.Error("Another instance holds the job lock: %v", err)
			os.Exit(3)
		}
		logger.Fatal("Command failed: %v", err)
	}
}

// withLock runs fn under a named advisory lock, failing fast when another
// process already holds it.
func withLock(ctx context.Context, st *store.Store, job, owner string, lease time.Duration, fn func() error) error {
	if err := st.AcquireJobLock(ctx, job, owner, lease); err != nil {
		return err
	}
	defer func() {
		if err := st.ReleaseJobLock(ctx, job, owner); err != nil {
			logger.Error("Failed to release %s lock: %v", job, err)
		}
	}()
	return fn()
}

func runScore(ctx context.Context, eng *engine.Engine, tracker *engine.Tracker, path string) error {
	var in scoreInput
	if err := readJSON(path, &in); err != nil {
		return err
	}

	for _, h := range in.Headlines {
		rec, err := eng.Predict(ctx, h, in.Economic)
		if err != nil {
			return fmt.Errorf("failed to score %q: %w", h.Title, err)
		}
		if err := tracker.Record(ctx, rec); err != nil {
			return err
		}
		fmt.Printf("%-6s %5.2f  %s\n", models.LevelForScore(rec.PredictedScore), rec.PredictedScore, h.Title)
	}
	return nil
}

func runDigestFeedback(ctx context.Context, ingester *learn.Ingester, digestID string, rating int, comment, headlinesPath string) error {
	if headlinesPath == "" {
		return errors.New("-digest-feedback requires -headlines")
	}
	var headlines []models.Headline
	if err := readJSON(headlinesPath, &headlines); err != nil {
		return err
	}

	fb := &models.DigestFeedback{DigestID: digestID, Rating: rating, Comment: comment}
	res, err := ingester.IngestDigest(ctx, fb, headlines)
	if res == nil {
		return err
	}
	printResult("digest", digestID, res)
	return nil
}

func runArticleFeedback(ctx context.Context, ingester *learn.Ingester, path string) error {
	var items []models.ArticleFeedback
	if err := readJSON(path, &items); err != nil {
		return err
	}

	rejected := 0
	for i := range items {
		res, err := ingester.IngestArticle(ctx, &items[i])
		if res == nil {
			return err
		}
		printResult("article", items[i].ArticleID, res)
		if res.Status != learn.StatusApplied {
			rejected++
		}
	}
	if rejected > 0 {
		logger.Warn("%d of %d article feedback items rejected", rejected, len(items))
	}
	return nil
}

func runReport(ctx context.Context, reporter *engine.Reporter, days int) error {
	rep, err := reporter.Build(ctx, time.Duration(days)*24*time.Hour, 15)
	if err != nil {
		return err
	}
	fmt.Print(rep.String())
	return nil
}

func runAlerts(ctx context.Context, st *store.Store, days int) error {
	detector := alerts.NewDetector(st)
	found, err := detector.Detect(ctx, 24*time.Hour, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}

	ranked := alerts.ScoreAndRank(found, 0.5, 10)
	if len(ranked) == 0 {
		fmt.Println("no urgency escalations detected")
		return nil
	}
	for _, e := range ranked {
		fmt.Printf("%-24s %.1f -> %.1f (shift %+.1f, n=%d, signal %.2f)\n",
			e.Source, e.BaselineMean, e.RecentMean, e.Shift, e.RecentCount, e.Score)
	}
	return nil
}

func runAccuracy(ctx context.Context, tracker *engine.Tracker, days int) error {
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	rep, err := tracker.Accuracy(ctx, since)
	if err != nil {
		return err
	}

	fmt.Printf("Predictions: %d made, %d settled\n", rep.Total, rep.Scored)
	fmt.Printf("Last %d days: n=%d mae=%.2f\n", days, rep.Overall.Count, rep.Overall.MeanError)
	for _, st := range rep.ByBand {
		fmt.Printf("  band %-7s n=%d mae=%.2f\n", st.Key, st.Count, st.MeanError)
	}
	for _, st := range rep.BySource {
		fmt.Printf("  source %-17s n=%d mae=%.2f\n", st.Key, st.Count, st.MeanError)
	}
	return nil
}

func printResult(kind, id string, res *learn.Result) {
	switch res.Status {
	case learn.StatusApplied:
		fmt.Printf("%s %s: applied (patterns=%d keywords=%d", kind, id, res.PatternsTrained, res.KeywordsTrained)
		if res.Class != "" {
			fmt.Printf(" class=%s", res.Class)
		}
		fmt.Println(")")
	default:
		fmt.Printf("%s %s: %s (%s)\n", kind, id, res.Status, res.Reason)
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
