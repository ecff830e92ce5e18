package managers

import (
	"context"
	"errors"
	"io"
	"sync"

	"stream-manager/src/history"
	"stream-manager/src/interfaces"
	"stream-manager/src/logger"
	"stream-manager/src/models"
	"stream-manager/src/routes"
	"stream-manager/src/serializers"
)

// -----------------------------------------------------------------------------

// ErrFeedExhausted is returned by Start (and so by Restart) once the update
// source has been drained. A drained source never resumes; the caller must
// re-create the source explicitly.
var ErrFeedExhausted = errors.New("feed source is exhausted")

// -----------------------------------------------------------------------------

// FeedManager drains one update-producing source and pushes each item,
// serialized, to every connection subscribed to its fixed channel. The
// broadcast loop runs on a dedicated goroutine; cancellation is cooperative,
// checked at each item boundary, so Stop is bounded by one item's processing
// time plus the source delay.
type FeedManager struct {
	*GenericManager

	feed       interfaces.IFeed
	serializer interfaces.ISerializer
	channel    string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// -----------------------------------------------------------------------------

// NewFeedManager builds a feed broadcaster over its own push listener. The
// channel named in the config is the only push route the listener serves.
func NewFeedManager(feed interfaces.IFeed, cfg models.MFeedConfig, log *logger.Logger) *FeedManager {
	if log == nil {
		log = logger.NewNop()
	}

	pushRegistry := routes.NewPushRegistry(log)
	// Subscribe-only channel: no inbound protocol, connections just listen
	_ = pushRegistry.Register(routes.PushRoute{Channel: cfg.Channel})

	fm := &FeedManager{
		GenericManager: NewGenericManager(models.MManagerConfig{
			UseWebsocket:  true,
			WebsocketPort: cfg.Port,
		}, nil, pushRegistry, log),
		feed:       feed,
		serializer: serializers.NewSerializer(cfg.Serializer),
		channel:    cfg.Channel,
	}
	fm.Name = "FeedManager"
	return fm
}

// -----------------------------------------------------------------------------

// Channel returns the fixed push channel the broadcaster serves
func (fm *FeedManager) Channel() string {
	return fm.channel
}

// -----------------------------------------------------------------------------

// Running reports whether the broadcast loop is active
func (fm *FeedManager) Running() bool {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.running
}

// -----------------------------------------------------------------------------

// Exhausted reports whether the underlying source has been drained
func (fm *FeedManager) Exhausted() bool {
	return fm.feed.Exhausted()
}

// -----------------------------------------------------------------------------

// Start brings the push listener up and launches the broadcast loop.
// Starting over an exhausted source fails with ErrFeedExhausted instead of
// silently serving nothing.
func (fm *FeedManager) Start() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if fm.running {
		return nil
	}
	if fm.feed.Exhausted() {
		return ErrFeedExhausted
	}

	if err := fm.GenericManager.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	fm.cancel = cancel
	fm.done = make(chan struct{})
	fm.running = true

	go fm.serve(ctx, fm.done)

	fm.Logger.Info("%s : broadcasting on channel %s, port %d", fm.Name, fm.channel, fm.Websocket().Port)
	return nil
}

// -----------------------------------------------------------------------------

// Stop clears the run flag, cancels the loop and joins it, then stops the
// listener. Idempotent.
func (fm *FeedManager) Stop() error {
	fm.mu.Lock()
	if fm.running {
		fm.running = false
		fm.cancel()
	}
	done := fm.done
	fm.mu.Unlock()

	if done != nil {
		<-done
	}
	return fm.GenericManager.Stop()
}

// -----------------------------------------------------------------------------

// Restart is exactly Stop then Start. It is not safe on an exhausted
// source: Start reports ErrFeedExhausted rather than resuming.
func (fm *FeedManager) Restart() error {
	if err := fm.Stop(); err != nil {
		return err
	}
	return fm.Start()
}

// -----------------------------------------------------------------------------

// serve is the broadcast loop: pull the next item, wrap it into the table
// abstraction, log it, and push its serialized form to every subscriber of
// the channel. Source exhaustion clears the run flag and stops the owning
// listener.
func (fm *FeedManager) serve(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		batch, err := fm.feed.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fm.Logger.Info("%s : feed exhausted, stopping listener", fm.Name)
				fm.mu.Lock()
				fm.running = false
				fm.mu.Unlock()
				if _, err := fm.Websocket().Stop(); err != nil {
					fm.Logger.Warning("%s : failed to stop listener: %v", fm.Name, err)
				}
			} else if !errors.Is(err, context.Canceled) {
				fm.Logger.Error("%s : feed error: %v", fm.Name, err)
			}
			return
		}

		snapshot := history.New(batch...)
		fm.Logger.Info("%s : sending snapshot of %d rows", fm.Name, snapshot.Len())

		payload, err := fm.serializer.Marshal(snapshot.Rows())
		if err != nil {
			fm.Logger.Error("%s : failed to serialize snapshot: %v", fm.Name, err)
			continue
		}
		fm.Websocket().Broadcast(fm.channel, payload)
	}
}
