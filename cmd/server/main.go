// cmd/server/main.go wires together every package in internal/ into the
// running pttbridge server, the same flat composition-root shape as the
// teacher's own main.go (fs handler + /ws handler + one more endpoint, all
// on http.ListenAndServe).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/n0remac/pttbridge/internal/api"
	"github.com/n0remac/pttbridge/internal/conference"
	"github.com/n0remac/pttbridge/internal/config"
	"github.com/n0remac/pttbridge/internal/logging"
	"github.com/n0remac/pttbridge/internal/relay"
	"github.com/n0remac/pttbridge/internal/store"
)

func main() {
	httpAddr := flag.String("http-addr", "", "override HTTP_PORT from the environment")
	flag.Parse()

	cfg := config.Load()
	if *httpAddr != "" {
		cfg.HTTPPort = *httpAddr
	}

	stopLogging := logging.Setup(cfg.EnableFileLog, cfg.LogRetentionDays)
	defer stopLogging()

	relayDrv := relay.Open(cfg.RelayPort, cfg.RelayBaudRate)
	defer relayDrv.Close()

	names, err := store.LoadClientNames(cfg.ClientNamesPath)
	if err != nil {
		log.Fatalf("loading client names: %v", err)
	}

	subs, err := store.OpenSubscriptions(cfg.SubscriptionsDB)
	if err != nil {
		log.Fatalf("opening subscriptions db: %v", err)
	}

	conf, err := conference.New(cfg, relayDrv, names, subs)
	if err != nil {
		log.Fatalf("building conference: %v", err)
	}
	defer conf.Close()

	if cfg.UsePythonAudio {
		if err := conf.EnsureSpeaker(); err != nil {
			log.Printf("starting persistent speaker subprocess: %v", err)
		}
	}

	sessions := store.NewDashboardSessions()
	apiServer := api.NewServer(conf, cfg, sessions)

	ctx, cancelMic := context.WithCancel(context.Background())
	defer cancelMic()
	conf.StartMicIngress(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", conf.ServeWS)
	mux.Handle("/", apiServer.Router())

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}

	go func() {
		log.Printf("pttbridge listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
	_ = srv.Shutdown(context.Background())
}
