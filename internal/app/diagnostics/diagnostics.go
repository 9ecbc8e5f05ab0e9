// Package diagnostics carries the bridge's operator-facing escape hatches
// that sit outside the object-bus/broker mirroring path itself: a hot-reloaded
// blocklist override file and a SIGUSR1 goroutine-dump handler. Grounded on
// the teacher's internal/app/watcher package, which watches service source
// trees with fsnotify; here there is exactly one file to watch instead of a
// whole tree, so the directory-watch trick below (watch the containing
// directory, not the file itself) does the same job with far less code.
package diagnostics

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fsnotify/fsnotify"

	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/config/logger"
)

// BlocklistWatcher hot-reloads an operator-maintained file of extra
// (service-type, path) pairs into a Table's blocked set. A missing or empty
// path disables it entirely.
type BlocklistWatcher struct {
	path string
	tbl  *table.Table
	fsw  *fsnotify.Watcher
	log  logger.Logger
}

// NewBlocklistWatcher creates a watcher for path, or returns (nil, nil) if
// path is empty: the feature is opt-in.
func NewBlocklistWatcher(path string, tbl *table.Table, log logger.Logger) (*BlocklistWatcher, error) {
	if path == "" {
		return nil, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &BlocklistWatcher{
		path: path,
		tbl:  tbl,
		fsw:  fsw,
		log:  log.WithComponent("DIAGNOSTICS"),
	}

	return w, nil
}

// Start loads the file once, then watches its containing directory for
// changes and reloads additively on every event that touches it. It watches
// the directory rather than the file so the common editor pattern of
// write-to-temp-then-rename is still picked up.
func (w *BlocklistWatcher) Start(ctx context.Context) error {
	w.reload()

	dir := filepath.Dir(w.path)
	if err := w.fsw.Add(dir); err != nil {
		return err
	}

	go w.run(ctx)

	return nil
}

func (w *BlocklistWatcher) run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.log.Warn().Err(err).Msg("blocklist watcher error")
		}
	}
}

func (w *BlocklistWatcher) reload() {
	items, err := parseBlocklist(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to read blocklist override file")
		return
	}

	w.tbl.AddBlocked(items)
	w.log.Info().Int("count", len(items)).Msg("merged blocklist override file")
}

// parseBlocklist reads "service-type path" pairs, one per line. Blank lines
// and lines starting with "#" are ignored.
func parseBlocklist(path string) ([]table.BlockedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []table.BlockedItem

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}

		items = append(items, table.BlockedItem{ServiceType: fields[0], Path: fields[1]})
	}

	return items, scanner.Err()
}

// DumpStacks writes every goroutine's stack trace through log, used as the
// SIGUSR1 handler installed by internal/app's App signal handling.
func DumpStacks(log logger.Logger) {
	buf := make([]byte, 1<<20)

	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}

		buf = make([]byte, 2*len(buf))
	}

	log.Warn().Msgf("SIGUSR1 stack dump:\n%s", buf)
}
