package main

import (
	"flag"
	"log"
	"time"

	"go-vacancy-pipeline/internal/config"
	"go-vacancy-pipeline/internal/eligibility"
	"go-vacancy-pipeline/internal/reconcile"
	"go-vacancy-pipeline/internal/reporter"
	"go-vacancy-pipeline/internal/scheduler"
	"go-vacancy-pipeline/internal/store"
)

func main() {
	//load config
	cfg := config.Load()

	mode := flag.String("mode", cfg.RunMode, "run mode label recorded in transparency output")
	dataDir := flag.String("data", cfg.DataDir, "data directory")
	cronSpec := flag.String("cron", cfg.CronSpec, "optional cron spec; empty runs once and exits")
	flag.Parse()

	st := store.New(*dataDir)

	tg, err := reporter.NewTelegramReporter(cfg)
	if err != nil {
		log.Printf("⚠️ Telegram reporter disabled: %v", err)
	}

	run := func() {
		runOnce(st, cfg, *mode, tg)
	}

	if *cronSpec == "" {
		run()
		return
	}

	sched := scheduler.New(*cronSpec, run)
	if err := sched.Start(); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}
	defer sched.Stop()
	select {}
}

// runOnce executes one full reconciliation pass and commits every output
// document atomically. A failed write leaves the previous documents
// authoritative and reports failure without partial commits.
func runOnce(st *store.Store, cfg *config.Config, mode string, tg *reporter.TelegramReporter) {
	now := time.Now()
	log.Printf("🚀 Starting vacancy reconciliation (mode=%s)...", mode)

	rules := st.LoadRules()
	registry := st.LoadRegistry()

	doc := reconcile.Run(reconcile.Input{
		Document:    st.LoadDocument(),
		Candidates:  st.LoadCandidates(),
		UserState:   st.LoadUserState(),
		Reports:     st.LoadReports(),
		Submissions: st.LoadSubmissions(),
		Votes:       st.LoadVotes(),
		Rules:       rules,
		Registry:    registry,
	}, reconcile.Options{
		RunMode:       mode,
		Now:           now,
		GraceDays:     cfg.GraceDays,
		LinkThreshold: cfg.LinkThreshold,
		Eligibility: eligibility.Config{
			NonLatinRatio: cfg.DevanagariRatio,
			AllowedRegion: cfg.AllowedRegion,
			MinTitleLen:   cfg.MinTitleLen,
		},
	})

	if err := st.SaveDocument(doc); err != nil {
		fail(tg, err)
		return
	}
	if err := st.SaveRules(rules); err != nil {
		fail(tg, err)
		return
	}
	if err := st.SaveRegistry(registry); err != nil {
		fail(tg, err)
		return
	}
	if err := st.SaveHealth(doc.TransparencyInfo); err != nil {
		fail(tg, err)
		return
	}
	if err := st.Touch(mode, now); err != nil {
		fail(tg, err)
		return
	}

	info := doc.TransparencyInfo
	log.Printf("✅ Reconciliation complete: %d active (%d applied), %d archived (hindi:%d, ineligible:%d), merged:%d",
		info.TotalListings, info.AppliedCount, info.ArchivedCount,
		info.RejectedHindi, info.RejectedIneligible, info.MergedUpdates)

	if tg != nil {
		if err := tg.SendSummary(info); err != nil {
			log.Printf("⚠️ Failed to send telegram summary: %v", err)
		}
	}
}

func fail(tg *reporter.TelegramReporter, err error) {
	log.Printf("❌ Run failed: %v", err)
	if tg != nil {
		_ = tg.SendError(err)
	}
}
