package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NewWatcher returns a watcher for the document directory of s
func NewWatcher(s *Store) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config watcher")
	}

	return &Watcher{
		dir:     s.Dir(),
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Watcher reports writes to configuration documents.
// It only notifies, applying a change is up to the callback owner.
type Watcher struct {
	dir       string
	watcher   *fsnotify.Watcher
	callbacks []func(Kind)
	m         sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
}

// OnChange registers a callback called with the kind of a changed document
func (w *Watcher) OnChange(cb func(Kind)) {
	w.m.Lock()
	defer w.m.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start watches the document directory until Stop is called
func (w *Watcher) Start() error {
	// watch the directory, editors replace files by renaming
	err := w.watcher.Add(w.dir)
	if err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.dir)
	}
	log.Debugf("Watching %s for config changes", w.dir)

	go w.run()

	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			kind, ok := documentKind(event.Name)
			if !ok {
				continue
			}
			log.Debugf("Config document %s changed (%s)", event.Name, event.Op)
			w.notify(kind)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("Config watcher error: %s", err)
		case <-w.done:
			return
		}
	}
}

// Stop stops watching
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) notify(k Kind) {
	w.m.RLock()
	defer w.m.RUnlock()
	for _, cb := range w.callbacks {
		cb(k)
	}
}

// documentKind maps a document file name back to its kind
func documentKind(name string) (Kind, bool) {
	base := filepath.Base(name)
	for _, k := range Kinds {
		if base == string(k)+".json" {
			return k, true
		}
	}
	return "", false
}
