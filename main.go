package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	_ "net/http/pprof"

	"github.com/google/uuid"
	log "github.com/pion/ion-log"

	"github.com/nullcore1024/RTCPilot/conf"
	"github.com/nullcore1024/RTCPilot/pkg/msu"
	"github.com/nullcore1024/RTCPilot/pkg/room"
	"github.com/nullcore1024/RTCPilot/pkg/signal"
)

func showHelp() {
	fmt.Printf("Usage:%s {params}\n", os.Args[0])
	fmt.Println("      -c {config file}")
	fmt.Println("      -h (show help info)")
}

func main() {
	var file string
	flag.StringVar(&file, "c", "configs/pilot.toml", "config file")
	help := flag.Bool("h", false, "help info")
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	cfg := conf.Config{}
	if err := cfg.Load(file); err != nil {
		log.Errorf("config load error: %v", err)
		os.Exit(-1)
	}

	log.Init(cfg.Log.Level)
	log.Infof("--- Starting Pilot Center [%s] ---", uuid.NewString())

	if cfg.Global.Pprof != "" {
		go func() {
			log.Infof("start pprof on %s", cfg.Global.Pprof)
			if err := http.ListenAndServe(cfg.Global.Pprof, nil); err != nil {
				log.Errorf("pprof serve error: %v", err)
			}
		}()
	}

	roomManager := room.NewManager()
	msuManager := msu.NewManager()
	server := signal.NewServer(cfg.Signal, roomManager, msuManager)
	defer server.Close()

	go msuManager.PruneLoop(
		time.Duration(cfg.Msu.AliveTTL)*time.Second,
		time.Duration(cfg.Msu.PruneInterval)*time.Second,
		server.Closed(),
	)

	if err := server.Serve(); err != nil {
		os.Exit(-1)
	}
}
