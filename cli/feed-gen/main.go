package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

func main() {
	filePath := flag.String("file", "", "JSON-lines file with telemetry reports")
	listen := flag.String("listen", "127.0.0.1:8081", "address to serve the /events websocket on")
	interval := flag.Duration("interval", 200*time.Millisecond, "delay between two reports")
	loop := flag.Bool("loop", false, "restart from the first report at the end of the file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{ForceColors: true})
	log.SetOutput(os.Stdout)

	if *filePath == "" {
		log.Fatal("Не задан файл, используйте -file")
	}
	if *interval <= 0 {
		log.Fatal("Интервал должен быть положительным")
	}

	lines, err := loadLines(*filePath)
	if err != nil {
		log.Fatalf("Не удалось прочитать %s: %v", *filePath, err)
	}
	log.WithFields(log.Fields{"file": *filePath, "reports": len(lines)}).Info("Поток загружен")

	mux := http.NewServeMux()
	mux.Handle("/events", NewFeed(lines, *interval, *loop))

	log.WithField("addr", *listen).Info("Поток телеметрии доступен на /events")
	if err := http.ListenAndServe(*listen, mux); err != nil {
		log.Fatal(err)
	}
}
