package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/navkit/nav"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	levelName := flag.String("level", "", "embedded level name or path to a level .json")
	profile := flag.String("profile", "nav_agent.yaml", "actor spec in prefabs/")
	watch := flag.Bool("watch", false, "reload the level and specs when they change on disk")
	metricsAddr := flag.String("metrics", "", "serve prometheus metrics on this address, e.g. :2112")
	useSpace := flag.Bool("space", false, "use the chipmunk space for collision queries")
	flag.Parse()

	var metrics *nav.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = nav.NewMetrics(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			log.Printf("metrics: listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	game, err := NewGame(Options{
		Level:    *levelName,
		Profile:  *profile,
		Watch:    *watch,
		UseSpace: *useSpace,
		Metrics:  metrics,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer game.Close()

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("navkit")

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
