package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/tagbot/internal/artwork"
	"github.com/harun/tagbot/internal/metrics"
	"github.com/harun/tagbot/internal/tags"
)

const (
	reasonCompleted = "completed"
	reasonCancelled = "cancelled"
	reasonReplaced  = "replaced"
	reasonEvicted   = "evicted"
	reasonShutdown  = "shutdown"
)

// DeliverFunc hands the finished file to the user. name is the file name the
// user should see.
type DeliverFunc func(ctx context.Context, path, name string) error

// Options configures a Controller.
type Options struct {
	// TempDir is the parent of the per-process working directory.
	// Empty means os.TempDir().
	TempDir string
	// MaxFileSize rejects larger uploads. Zero disables the limit.
	MaxFileSize int64
	Metrics     *metrics.Metrics
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Controller owns every editing session and its temp file. All operations
// on one user's session are serialized by the store's per-user lock.
type Controller struct {
	store    *Store
	dir      string
	maxSize  int64
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
	codecFor func(tags.Format) (tags.Codec, error)
}

// NewController creates the controller and its scoped temp directory.
func NewController(store *Store, opts Options) (*Controller, error) {
	dir, err := os.MkdirTemp(opts.TempDir, "tagbot-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		store:    store,
		dir:      dir,
		maxSize:  opts.MaxFileSize,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With().Str("component", "session").Logger(),
		now:      now,
		codecFor: tags.CodecFor,
	}, nil
}

// Dir is the directory holding session files.
func (c *Controller) Dir() string {
	return c.dir
}

// Create starts a session for userID from an uploaded file. Any existing
// session of the user is destroyed first. On error no session is left.
func (c *Controller) Create(ctx context.Context, userID int64, fileName string, body io.Reader) (Session, error) {
	unlock := c.store.Lock(userID)
	defer unlock()

	if old, ok := c.store.Delete(userID); ok {
		c.discard(old, reasonReplaced)
	}

	br := bufio.NewReaderSize(body, tags.SniffLen)
	header, _ := br.Peek(tags.SniffLen)

	format := tags.Detect(fileName, header)
	codec, err := c.codecFor(format)
	if err != nil {
		c.metrics.RecordUpload(format.String(), 0, false)
		return Session{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, fileName)
	}

	id, err := gonanoid.New()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session id: %w", err)
	}

	path := filepath.Join(c.dir, id+format.Ext())
	size, err := c.writeTemp(ctx, path, br)
	if err != nil {
		c.metrics.RecordUpload(format.String(), size, false)
		return Session{}, err
	}

	snap, err := codec.Read(path)
	if err != nil {
		removeFile(path)
		c.metrics.RecordUpload(format.String(), size, false)
		return Session{}, fmt.Errorf("%w: %w", ErrCorruptFile, err)
	}

	initial := State{Stage: AwaitingFile}
	next := State{Stage: SelectingTag}
	if !initial.CanTransition(next) {
		removeFile(path)
		return Session{}, transitionError(initial, next)
	}

	now := c.now()
	sess := &Session{
		UserID:    userID,
		ID:        id,
		State:     next,
		FilePath:  path,
		FileName:  fileName,
		Format:    format,
		Snapshot:  snap,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.store.Put(sess)

	c.metrics.RecordUpload(format.String(), size, true)
	c.metrics.RecordSessionStarted()
	c.metrics.SetActiveSessions(c.store.Len())

	c.logger.Info().
		Int64("user_id", userID).
		Str("session_id", id).
		Str("format", format.String()).
		Int64("size", size).
		Msg("Session created")

	return sess.Clone(), nil
}

// SelectTag moves a session from the tag menu into editing field, or into
// the cover prompt for tags.FieldCover.
func (c *Controller) SelectTag(userID int64, field tags.Field) (Session, error) {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return Session{}, ErrNoActiveSession
	}

	if _, ok := tags.ParseField(string(field)); !ok {
		return Session{}, &ValidationError{Field: field, Message: "unknown tag"}
	}

	to := Editing(field)
	if field == tags.FieldCover {
		to = State{Stage: AwaitingCover}
	}
	if !sess.State.CanTransition(to) {
		return Session{}, transitionError(sess.State, to)
	}

	sess.State = to
	sess.UpdatedAt = c.now()
	return sess.Clone(), nil
}

// ApplyTagValue validates raw and writes it to the field being edited. On a
// validation or write error the state is unchanged.
func (c *Controller) ApplyTagValue(userID int64, raw string) (Session, error) {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return Session{}, ErrNoActiveSession
	}

	next := State{Stage: SelectingTag}
	if sess.State.Stage != EditingTag || !sess.State.CanTransition(next) {
		return Session{}, transitionError(sess.State, next)
	}
	field := sess.State.Field

	value, err := tags.NormalizeValue(field, raw, c.now())
	if err != nil {
		var verr *tags.ValueError
		if errors.As(err, &verr) {
			return Session{}, &ValidationError{Field: verr.Field, Message: verr.Reason}
		}
		return Session{}, &ValidationError{Field: field, Message: err.Error()}
	}

	codec, err := c.codecFor(sess.Format)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	start := time.Now()
	err = codec.Write(sess.FilePath, field, value)
	c.metrics.RecordTagEdit(string(field), sess.Format.String(), time.Since(start), err == nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sess.ID).Str("field", string(field)).Msg("Tag write failed")
		return Session{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	snap, err := codec.Read(sess.FilePath)
	if err != nil {
		return Session{}, fmt.Errorf("%w: re-read after write: %w", ErrWrite, err)
	}

	sess.Snapshot = snap
	sess.State = next
	sess.UpdatedAt = c.now()

	c.logger.Debug().
		Str("session_id", sess.ID).
		Str("field", string(field)).
		Msg("Tag updated")

	return sess.Clone(), nil
}

// ApplyCoverImage normalizes data into a JPEG cover and embeds it, replacing
// existing artwork.
func (c *Controller) ApplyCoverImage(userID int64, data []byte) (Session, error) {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return Session{}, ErrNoActiveSession
	}

	next := State{Stage: SelectingTag}
	if sess.State.Stage != AwaitingCover {
		return Session{}, transitionError(sess.State, next)
	}

	cover, err := artwork.Prepare(data)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	codec, err := c.codecFor(sess.Format)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	err = codec.WriteCover(sess.FilePath, cover.JPEG)
	c.metrics.RecordCoverUpdate(sess.Format.String(), err == nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("Cover write failed")
		return Session{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	snap, err := codec.Read(sess.FilePath)
	if err != nil {
		return Session{}, fmt.Errorf("%w: re-read after write: %w", ErrWrite, err)
	}

	sess.Snapshot = snap
	sess.State = next
	sess.UpdatedAt = c.now()

	c.logger.Debug().
		Str("session_id", sess.ID).
		Int("width", cover.Width).
		Int("height", cover.Height).
		Msg("Cover updated")

	return sess.Clone(), nil
}

// Back abandons the current edit and returns to the tag menu. It is a no-op
// when the menu is already showing.
func (c *Controller) Back(userID int64) (Session, error) {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return Session{}, ErrNoActiveSession
	}

	next := State{Stage: SelectingTag}
	if sess.State == next {
		return sess.Clone(), nil
	}
	if !sess.State.CanTransition(next) {
		return Session{}, transitionError(sess.State, next)
	}

	sess.State = next
	sess.UpdatedAt = c.now()
	return sess.Clone(), nil
}

// Finalize delivers the edited file and ends the session. If deliver fails
// the session is kept so the user can retry.
func (c *Controller) Finalize(ctx context.Context, userID int64, deliver DeliverFunc) error {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return ErrNoActiveSession
	}

	if err := deliver(ctx, sess.FilePath, deliveryName(sess)); err != nil {
		return fmt.Errorf("failed to deliver file: %w", err)
	}

	c.store.Delete(userID)
	c.discard(sess, reasonCompleted)

	c.logger.Info().
		Int64("user_id", userID).
		Str("session_id", sess.ID).
		Msg("Session completed")

	return nil
}

// Cancel destroys the user's session, if any, and reports whether one
// existed.
func (c *Controller) Cancel(userID int64) bool {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Delete(userID)
	if !ok {
		return false
	}
	c.discard(sess, reasonCancelled)
	return true
}

// Get returns a copy of the user's session.
func (c *Controller) Get(userID int64) (Session, bool) {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return Session{}, false
	}
	return sess.Clone(), true
}

// Cover returns the embedded artwork of the user's file.
func (c *Controller) Cover(userID int64) ([]byte, error) {
	unlock := c.store.Lock(userID)
	defer unlock()

	sess, ok := c.store.Get(userID)
	if !ok {
		return nil, ErrNoActiveSession
	}
	codec, err := c.codecFor(sess.Format)
	if err != nil {
		return nil, err
	}
	return codec.Cover(sess.FilePath)
}

// EvictIdle destroys sessions untouched for longer than maxIdle and returns
// copies of them.
func (c *Controller) EvictIdle(maxIdle time.Duration) []Session {
	cutoff := c.now().Add(-maxIdle)

	var evicted []Session
	for _, userID := range c.store.UserIDs() {
		unlock := c.store.Lock(userID)
		sess, ok := c.store.Get(userID)
		if ok && sess.UpdatedAt.Before(cutoff) {
			c.store.Delete(userID)
			c.discard(sess, reasonEvicted)
			evicted = append(evicted, sess.Clone())
		}
		unlock()
	}
	return evicted
}

// Len is the number of live sessions.
func (c *Controller) Len() int {
	return c.store.Len()
}

// Close destroys every session and removes the temp directory.
func (c *Controller) Close() error {
	for _, userID := range c.store.UserIDs() {
		unlock := c.store.Lock(userID)
		if sess, ok := c.store.Delete(userID); ok {
			c.discard(sess, reasonShutdown)
		}
		unlock()
	}

	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("failed to remove temp directory: %w", err)
	}
	return nil
}

// discard deletes the session's file. The session must already be removed
// from the store.
func (c *Controller) discard(sess *Session, reason string) {
	if err := os.Remove(sess.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn().Err(err).Str("path", sess.FilePath).Msg("Failed to remove session file")
	}
	c.metrics.RecordSessionEnded(reason)
	c.metrics.SetActiveSessions(c.store.Len())

	c.logger.Debug().
		Int64("user_id", sess.UserID).
		Str("session_id", sess.ID).
		Str("reason", reason).
		Msg("Session destroyed")
}

func (c *Controller) writeTemp(ctx context.Context, path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("failed to create session file: %w", err)
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if c.maxSize > 0 {
		src = io.LimitReader(src, c.maxSize+1)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		removeFile(path)
		return n, fmt.Errorf("failed to store upload: %w", err)
	}
	if c.maxSize > 0 && n > c.maxSize {
		removeFile(path)
		return n, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, c.maxSize)
	}
	return n, nil
}

func deliveryName(sess *Session) string {
	name := filepath.Base(sess.FileName)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "audio"
	}
	byName := tags.FormatFromName(name)
	switch {
	case byName == tags.FormatUnknown:
		name += sess.Format.Ext()
	case !tags.SameContainer(byName, sess.Format):
		name = strings.TrimSuffix(name, filepath.Ext(name)) + sess.Format.Ext()
	}
	return name
}

func removeFile(path string) {
	_ = os.Remove(path)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
