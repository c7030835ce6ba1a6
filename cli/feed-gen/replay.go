package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// loadLines reads a JSON-lines telemetry file. Blank lines are skipped,
// anything else must be a JSON object.
func loadLines(path string) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines := make([][]byte, 0, 1000)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, fmt.Errorf("строка %d: %w", n, err)
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Feed replays the same recorded lines to every connected client, each at
// its own pace starting from the first line.
type Feed struct {
	lines    [][]byte
	interval time.Duration
	loop     bool
	upgrader websocket.Upgrader
}

func NewFeed(lines [][]byte, interval time.Duration, loop bool) *Feed {
	return &Feed{
		lines:    lines,
		interval: interval,
		loop:     loop,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Warn("Не удалось установить websocket-соединение")
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	logger := log.WithFields(log.Fields{"client": clientID, "remote": r.RemoteAddr})
	logger.Info("Клиент подключен")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent, err := f.replay(conn, gone)
	if err != nil {
		logger.WithField("err", err).Warn("Воспроизведение прервано")
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "end of feed"),
		time.Now().Add(time.Second))
	logger.WithField("sent", sent).Info("Воспроизведение завершено")
}

func (f *Feed) replay(conn *websocket.Conn, gone <-chan struct{}) (int, error) {
	if len(f.lines) == 0 {
		return 0, nil
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	sent := 0
	for i := 0; ; {
		if err := conn.WriteMessage(websocket.TextMessage, f.lines[i]); err != nil {
			return sent, err
		}
		sent++

		i++
		if i == len(f.lines) {
			if !f.loop {
				return sent, nil
			}
			i = 0
		}

		select {
		case <-ticker.C:
		case <-gone:
			return sent, nil
		}
	}
}
