package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"

	"github.com/MarineRcher/notAlone-sub002/auth"
	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/globals"
	"github.com/MarineRcher/notAlone-sub002/persistence"
	"github.com/MarineRcher/notAlone-sub002/ws"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "ws service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	hub *ws.Hub
)

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister != nil {
		defer persister.Close()
	}

	hub = ws.NewHub(globalConfig, persister)
	stop := make(chan struct{})
	go hub.Run(stop)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		close(stop)
		globals.AppLogger.Info("interrupted, shutting down")
		os.Exit(0)
	}()

	setupRoutes()

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

func setupRoutes() {
	router := mux.NewRouter()
	router.HandleFunc("/ws", websocketHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", statsHandler).Methods(http.MethodGet)
	http.Handle("/", router)
}

// Handle incoming websockets. The credential must be presented up front, a
// connection that fails authentication is closed before any event handler is
// wired up.
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = r.Header.Get("Authorization")
	}
	identity, err := auth.Authenticate(credential, hub.Cfg)
	if err != nil {
		globals.AppLogger.Warn("authentication failed", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close() //nolint

	client := ws.NewClient(hub, conn, *identity)
	go client.WriteLoop()
	client.ReadLoop()
	<-client.Done()
}

func statsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(hub.Stats())
}
