package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iammorganparry/clive/apps/interviewer/internal/adapters"
	"github.com/iammorganparry/clive/apps/interviewer/internal/blobs"
	"github.com/iammorganparry/clive/apps/interviewer/internal/events"
	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
	"github.com/iammorganparry/clive/apps/interviewer/internal/privacy"
	"github.com/iammorganparry/clive/apps/interviewer/internal/sessions"
)

// Capture turns raw screen and audio uploads into session context.
type Capture struct {
	store       *sessions.SessionStore
	extractor   adapters.TextExtractor
	transcriber adapters.Transcriber
	blobs       blobs.Store
	events      events.Publisher
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewCapture creates a capture service. extractor and transcriber may be nil,
// in which case the matching operation reports ErrAdapterUnavailable.
func NewCapture(d Deps, extractor adapters.TextExtractor, transcriber adapters.Transcriber, store blobs.Store, timeout time.Duration) *Capture {
	if store == nil {
		store = blobs.DigestStore{}
	}
	return &Capture{
		store:       d.Store,
		extractor:   extractor,
		transcriber: transcriber,
		blobs:       store,
		events:      d.publisher(),
		timeout:     timeout,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// AnalyzeScreen extracts text from a screen capture and appends it to the session.
func (c *Capture) AnalyzeScreen(ctx context.Context, sessionID string, image []byte) (*models.ScreenContent, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is empty: %w", models.ErrBadRequest)
	}
	if err := c.checkWritable(sessionID); err != nil {
		return nil, err
	}
	if c.extractor == nil {
		return nil, fmt.Errorf("screen analysis: no text extractor: %w", models.ErrAdapterUnavailable)
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	ext, err := c.extractor.Extract(actx, image)
	cancel()
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(privacy.Redact(ext.Text))
	class := ext.Classification
	if !class.IsValid() || class == models.ClassUnknown {
		class = adapters.Classify(text, 0)
	}

	ref, err := c.blobs.Put(ctx, sessionID, image)
	if err != nil {
		c.logger.Warn("failed to store screen capture, keeping digest only", "session_id", sessionID, "error", err)
		ref = blobs.Digest(image)
	}

	sess, err := c.store.AppendScreen(sessionID, models.ScreenContent{
		CapturedAt:     c.now().UTC(),
		Text:           text,
		Classification: class,
		ImageRef:       ref,
	})
	if err != nil {
		c.discardCapture(ctx, sessionID, ref)
		return nil, err
	}

	sc := sess.Screens[len(sess.Screens)-1]
	c.logger.Debug("screen analyzed", "session_id", sessionID, "screen_id", sc.ID, "classification", sc.Classification, "chars", len(sc.Text))
	c.events.Publish(events.Event{Type: events.ScreenAnalyzed, SessionID: sessionID,
		Data: map[string]any{"screen_id": sc.ID, "classification": sc.Classification}})
	return &sc, nil
}

// TranscribeAudio transcribes an audio chunk and appends it to the session.
func (c *Capture) TranscribeAudio(ctx context.Context, sessionID string, audio []byte) (*models.AudioSegment, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio is empty: %w", models.ErrBadRequest)
	}
	if err := c.checkWritable(sessionID); err != nil {
		return nil, err
	}
	if c.transcriber == nil {
		return nil, fmt.Errorf("audio transcription: no transcriber: %w", models.ErrAdapterUnavailable)
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	tr, err := c.transcriber.Transcribe(actx, audio)
	cancel()
	if err != nil {
		return nil, err
	}

	sess, err := c.store.AppendAudio(sessionID, models.AudioSegment{
		CapturedAt: c.now().UTC(),
		Text:       strings.TrimSpace(privacy.Redact(tr.Text)),
		Confidence: clamp01(tr.Confidence),
		Duration:   tr.Duration,
	})
	if err != nil {
		return nil, err
	}

	seg := sess.Audio[len(sess.Audio)-1]
	c.logger.Debug("audio transcribed", "session_id", sessionID, "segment_id", seg.ID, "confidence", seg.Confidence)
	c.events.Publish(events.Event{Type: events.AudioTranscribed, SessionID: sessionID,
		Data: map[string]any{"segment_id": seg.ID}})
	return &seg, nil
}

// checkWritable fails fast before an adapter call on a missing or finished session.
// discardCapture removes a stored capture whose screen was never recorded.
// Keys are content-addressed, so an object an earlier screen still points at is kept.
func (c *Capture) discardCapture(ctx context.Context, sessionID, ref string) {
	if sess, err := c.store.Get(sessionID); err == nil {
		for _, sc := range sess.Screens {
			if sc.ImageRef == ref {
				return
			}
		}
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.blobs.Delete(dctx, ref); err != nil {
		c.logger.Warn("failed to remove unrecorded screen capture", "session_id", sessionID, "ref", ref, "error", err)
	}
}

func (c *Capture) checkWritable(sessionID string) error {
	sess, err := c.store.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.Status.IsFinal() {
		return fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, models.ErrInvalidState)
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
