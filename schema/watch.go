package schema

import (
	"context"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch rebuilds the model whenever the SDL file at path changes and hands
// the result (or the build error) to fn. Intended for development servers;
// production deployments build the model once at startup. Watch blocks
// until ctx is cancelled.
func Watch(ctx context.Context, path string, fn func(*Model, error), opts ...BuildOption) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}

	reload := func() {
		data, err := os.ReadFile(path)
		if err != nil {
			fn(nil, err)
			return
		}
		fn(Build(string(data), opts...))
	}
	reload()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
				logrus.StandardLogger().WithField("path", ev.Name).Debug("schema changed, rebuilding")
				reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fn(nil, err)
		}
	}
}
