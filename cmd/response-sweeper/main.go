// README: Background worker; converts unanswered dispatches into misses and reconciles the commission ledger.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"serene/internal/config"
	"serene/internal/infra"
	"serene/internal/modules/availability"
	"serene/internal/modules/booking"
	"serene/internal/modules/commission"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("response-sweeper starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	log.Printf("running sweeper in env=%s interval=%s sla=%s", cfg.Env, cfg.Sweeper.Interval, cfg.Scoring.ResponseSLA)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("SERENE_FIREBASE_PROJECT_ID is required")
	}
	fsClient, err := infra.NewFirestore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer fsClient.Close()

	redisClient, err := infra.NewRedis(cfg.Redis.Addr)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer redisClient.Close()

	store := availability.NewFirestoreStore(fsClient)
	ranker := availability.NewRedisRanker(redisClient)
	availabilitySvc := availability.NewService(store, ranker, store, cfg.Scoring.ResponseSLA)

	commissionStore := commission.NewFirestoreStore(fsClient)
	commissionSvc := commission.NewService(commissionStore, cfg.Commission.Rate)
	accepted := booking.AcceptedLister{Store: booking.NewFirestoreStore(fsClient)}

	runOnce(ctx, availabilitySvc, commissionSvc, accepted)

	ticker := time.NewTicker(cfg.Sweeper.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("response-sweeper shutting down")
			return
		case <-ticker.C:
			runOnce(ctx, availabilitySvc, commissionSvc, accepted)
		}
	}
}

func runOnce(ctx context.Context, avail *availability.Service, ledger *commission.Service, accepted booking.AcceptedLister) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := avail.ExpireUnanswered(sweepCtx); err != nil {
		log.Printf("expire unanswered dispatches: %v", err)
	}

	// Look back a bounded window; older gaps were already alerted on.
	since := time.Now().Add(-24 * time.Hour)
	if _, err := ledger.Reconcile(sweepCtx, accepted, since); err != nil {
		log.Printf("reconcile commissions: %v", err)
	}
}
