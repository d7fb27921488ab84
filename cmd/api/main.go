package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"peterboroughtenants.org/internal/cms"
	"peterboroughtenants.org/internal/directory"
	"peterboroughtenants.org/internal/httpapi"
	"peterboroughtenants.org/internal/member"
	"peterboroughtenants.org/internal/notify"
	"peterboroughtenants.org/internal/obs"
	"peterboroughtenants.org/internal/org"
	"peterboroughtenants.org/internal/session"
	"peterboroughtenants.org/internal/token"
)

var version = "0.4.0"

func main() {
	obs.Init()

	dsn := os.Getenv("MEMBERS_PG_DSN")
	if dsn == "" {
		log.Fatal("MEMBERS_PG_DSN is required")
	}
	secret := []byte(os.Getenv("MEMBERS_SECRET"))
	if len(secret) == 0 {
		log.Fatal("MEMBERS_SECRET is required")
	}
	env := os.Getenv("MEMBERS_ENV")
	devMode := env == "" || env == "development"
	addr := os.Getenv("MEMBERS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	eval := member.NewEvaluator()

	sessionOpts := []session.Option{}
	if devMode {
		sessionOpts = append(sessionOpts, session.WithSoftFail(true))
	}
	sessions, err := session.NewService(session.NewPGStore(db), secret, sessionOpts...)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}

	tokens, err := token.New(secret)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	contacts, err := directory.NewService(directory.NewPGStore(db), eval)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}

	pages, err := cms.NewService(cms.NewPGStore(db), eval)
	if err != nil {
		log.Fatalf("cms service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mail httpapi.Mailer
	if relay := os.Getenv("MEMBERS_SMTP_ADDR"); relay != "" {
		sender := &notify.SMTPSender{
			Addr: relay,
			From: envOr("MEMBERS_SMTP_FROM", "membership@peterboroughtenants.org"),
		}
		if user := os.Getenv("MEMBERS_SMTP_USER"); user != "" {
			host := relay
			if i := strings.IndexByte(relay, ':'); i >= 0 {
				host = relay[:i]
			}
			sender.Auth = smtp.PlainAuth("", user, os.Getenv("MEMBERS_SMTP_PASSWORD"), host)
		}
		worker := notify.NewWorker(notify.NewPGStore(db), sender)
		if err := worker.Start(ctx); err != nil {
			log.Fatalf("mail worker: %v", err)
		}
		defer worker.Stop()
		mail = worker
	}

	api := httpapi.New(httpapi.Config{
		Version:       version,
		DevMode:       devMode,
		SecureCookies: !devMode,
		CORSOrigins:   splitList(os.Getenv("MEMBERS_CORS_ORIGINS")),
	}, httpapi.Deps{
		Sessions: sessions,
		Tokens:   tokens,
		Members:  member.NewPGStore(db),
		Eval:     eval,
		Contacts: contacts,
		Pages:    pages,
		Units:    org.NewPGStore(db, eval),
		Mail:     mail,
		Ready:    httpapi.ReadyProbe{DB: db},
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting members-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = db.Close()
	log.Println("Stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
