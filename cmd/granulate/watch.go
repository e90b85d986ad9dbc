package main

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// watchSession reloads the session file whenever it changes and pushes
// the parsed result into sessions. Parse and watcher errors go to
// errs. The goroutine exits when done closes.
func watchSession(path string, sessions chan<- *sessionConfig, errs chan<- error, done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				// Editors often rename or recreate instead of
				// writing in place.
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				cfg, err := loadSession(path)
				if err != nil {
					select {
					case errs <- err:
					case <-done:
						return
					}
					continue
				}

				select {
				case sessions <- cfg:
				case <-done:
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				select {
				case errs <- err:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	return nil
}
