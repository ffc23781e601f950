package main

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gekko3d/meshdust"
)

// fileWatcher calls reload whenever the watched file is written or
// replaced. The parent directory is watched so editors that save by rename
// are still seen.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	done    chan struct{}
}

func watchFile(path string, reload func(string), logger meshdust.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fileWatcher{watcher: w, path: abs, done: make(chan struct{})}
	go func() {
		defer close(fw.done)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&fsnotify.Write == fsnotify.Write ||
					event.Op&fsnotify.Create == fsnotify.Create {
					logger.Debugf("%s changed (%s), reloading", abs, event.Op)
					reload(path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnf("watching %s: %v", abs, err)
			}
		}
	}()
	return fw, nil
}

func (fw *fileWatcher) Close() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}
