package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounce window between the last file event and a reprocess, so an
// editor saving several files triggers one run.
const watchDebounce = 500 * time.Millisecond

// Watch reprocesses the source directory whenever a specification file
// changes, until ctx is cancelled. A failed run is logged and the
// watcher keeps going; the atomic artifact writes guarantee the last
// good artifacts stay in place.
func (pl *Pipeline) Watch(ctx context.Context, srcDir, destDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, sub := range []string{ProtocolsDir, TemplatesDir, AttributesDir} {
		if err := watcher.Add(filepath.Join(srcDir, sub)); err != nil {
			return err
		}
	}

	run := func() {
		if err := pl.ProcessAll(ctx, srcDir, destDir); err != nil {
			pl.log.Error("reprocess failed", zap.Error(err))
		}
	}
	run()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".yaml") {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pl.log.Debug("specification change", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			pl.log.Warn("watcher error", zap.Error(err))
		}
	}
}
