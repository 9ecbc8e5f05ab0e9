// Package status exposes the bridge's current topic table over a local
// unix socket, read-only, for the "dbusmqtt topics ls" diagnostic
// subcommand. It is deliberately the thinnest possible protocol: a client
// connects, the server writes one JSON line per known topic and closes.
// This is observability tooling, not a change to bus/broker semantics, and
// carries no write path.
package status

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"

	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/config/logger"
)

// Entry is one line of the status protocol.
type Entry struct {
	Topic string      `json:"topic"`
	Value interface{} `json:"value"`
}

// Serve listens on socketPath and answers every connection with the
// table's current contents, until ctx is cancelled. The socket file is
// removed on both start (stale file from a previous run) and shutdown.
func Serve(ctx context.Context, socketPath string, tbl *table.Table, log logger.Logger) error {
	_ = os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
		_ = os.Remove(socketPath)
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go serveConn(conn, tbl, log)
		}
	}()

	return nil
}

func serveConn(conn net.Conn, tbl *table.Table, log logger.Logger) {
	defer conn.Close()

	enc := json.NewEncoder(conn)

	for _, topic := range tbl.SortedTopics() {
		value, ok := tbl.Value(topic)
		if !ok {
			continue
		}

		if err := enc.Encode(Entry{Topic: topic, Value: value.Unwrap()}); err != nil {
			log.WithComponent("STATUS").Warn().Err(err).Msg("failed writing status entry")
			return
		}
	}
}

// Query dials socketPath and returns every entry the server reports.
func Query(socketPath string) ([]Entry, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var entries []Entry

	dec := json.NewDecoder(bufio.NewReader(conn))
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			break
		}

		entries = append(entries, e)
	}

	return entries, nil
}
