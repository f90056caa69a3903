// README: Entry point; loads config, wires module services, starts the HTTP API.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"serene/internal/audit"
	"serene/internal/config"
	httptransport "serene/internal/http"
	"serene/internal/infra"
	"serene/internal/modules/availability"
	"serene/internal/modules/booking"
	"serene/internal/modules/commission"
	"serene/internal/modules/guard"
	"serene/internal/modules/locationverify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("SERENE_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	fsClient, err := infra.NewFirestore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firestore init: %v", err)
	}
	defer fsClient.Close()

	dbPool, err := infra.NewDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(cfg.Redis.Addr)
	if err != nil {
		log.Fatal(err)
	}
	defer redisClient.Close()

	auditSink := audit.NewPGSink(dbPool)

	guardStore := guard.NewFirestoreStore(fsClient)
	guardSvc := guard.NewService(guardStore, auditSink)

	commissionStore := commission.NewFirestoreStore(fsClient)
	commissionSvc := commission.NewService(commissionStore, cfg.Commission.Rate)

	bookingStore := booking.NewFirestoreStore(fsClient)
	bookingSvc := booking.NewService(bookingStore, guardSvc, commissionSvc, auditSink)

	var geocoder locationverify.Geocoder
	if cfg.Maps.APIKey != "" {
		g, err := locationverify.NewMapsGeocoder(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		geocoder = g
	}

	locationStore := locationverify.NewFirestoreStore(fsClient)
	chats := locationverify.NewFirestoreChats(fsClient)
	locationSvc := locationverify.NewService(locationStore, bookingSvc, chats, geocoder,
		cfg.Location.CaptureMaxAge, cfg.Location.ShareDeadline)

	availabilityStore := availability.NewFirestoreStore(fsClient)
	ranker := availability.NewRedisRanker(redisClient)
	availabilitySvc := availability.NewService(availabilityStore, ranker, availabilityStore, cfg.Scoring.ResponseSLA)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Booking:      bookingSvc,
		Location:     locationSvc,
		Availability: availabilitySvc,
		Commission:   commissionSvc,
		Verifier:     verifier,
		AdminShare:   cfg.Commission.AdminShare,
		PromoterRate: cfg.Commission.PromoterRate,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("serene-api listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
