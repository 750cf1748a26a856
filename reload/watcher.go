package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pirdb"
)

// Watcher loads generation files from a directory and publishes them as
// they appear. The encoder writes files atomically via rename, so a
// create event always names a complete file.
type Watcher struct {
	dir       string
	manager   *he.Manager
	publisher *Publisher
	log       *slog.Logger
	fsw       *fsnotify.Watcher
}

// NewWatcher creates a watcher over a generation directory.
func NewWatcher(dir string, manager *he.Manager, publisher *Publisher, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("reload: watching %s: %w", dir, err)
	}
	return &Watcher{
		dir:       dir,
		manager:   manager,
		publisher: publisher,
		log:       log,
		fsw:       fsw,
	}, nil
}

// LoadLatest publishes the newest generation file already present in
// the directory, if any. Called once at startup before Run.
func (w *Watcher) LoadLatest() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reload: listing %s: %w", w.dir, err)
	}
	var candidates []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), pirdb.FileExt) {
			candidates = append(candidates, filepath.Join(w.dir, e.Name()))
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		fi, _ := os.Stat(candidates[i])
		fj, _ := os.Stat(candidates[j])
		if fi == nil || fj == nil {
			return candidates[i] < candidates[j]
		}
		return fi.ModTime().Before(fj.ModTime())
	})
	return w.loadAndPublish(candidates[len(candidates)-1])
}

// Run processes filesystem events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			// Atomic publication lands as a rename into place; some
			// platforms report it as Create or Write.
			if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, pirdb.FileExt) {
				continue
			}
			if err := w.loadAndPublish(event.Name); err != nil {
				// A bad file must not take down serving; the previous
				// generation stays current.
				w.log.Error("rejected generation file", "path", event.Name, "err", err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "err", err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// loadAndPublish reads, validates, prepares, and publishes one
// generation file.
func (w *Watcher) loadAndPublish(path string) error {
	gen, err := pirdb.ReadFile(path)
	if err != nil {
		return err
	}

	scheme, ok := w.manager.Get(gen.ParamsID)
	if !ok {
		// The generation carries its own parameter literal, so a scheme
		// rollout needs no separate config push.
		scheme, err = w.manager.Load(gen.ParamsBlob)
		if err != nil {
			return fmt.Errorf("reload: loading params of generation %s: %w", gen.ID, err)
		}
		if scheme.ID() != gen.ParamsID {
			return fmt.Errorf("reload: generation %s declares params %s but its blob derives %s",
				gen.ID, gen.ParamsID, scheme.ID())
		}
	}

	if err := gen.Prepare(he.NewEngine(scheme)); err != nil {
		return err
	}

	genID := gen.ID
	gen.SetReleaseHook(func() {
		w.log.Info("generation fully released", "generation", genID)
	})
	w.publisher.Publish(gen)
	return nil
}
