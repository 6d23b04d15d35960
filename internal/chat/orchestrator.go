// Package chat ties thread persistence, provider routing and speech together
// into the chat use cases.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RichardoC/talkback/internal/models"
	"github.com/RichardoC/talkback/internal/threads"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxSaveRetries bounds how often a failed save is retried against a freshly
// created thread.
const maxSaveRetries = 1

type Config struct {
	Threads     ThreadStore
	Settings    SettingsSource
	Generator   Generator
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Logger      *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Orchestrator struct {
	threads    ThreadStore
	settings   SettingsSource
	gen        Generator
	recognizer Recognizer
	synth      Synthesizer
	logger     *zap.Logger
	now        func() time.Time

	idMu     sync.Mutex
	lastIDMs int64
}

type nopSynthesizer struct{}

func (nopSynthesizer) Speak(string, SpeakOptions) {}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		threads:    cfg.Threads,
		settings:   cfg.Settings,
		gen:        cfg.Generator,
		recognizer: cfg.Recognizer,
		synth:      cfg.Synthesizer,
		logger:     cfg.Logger,
		now:        cfg.Clock,
	}
	if o.synth == nil {
		o.synth = nopSynthesizer{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// LoadSession reads the selected model and language into a new Session. The
// session has no thread yet; call Acquire.
func (o *Orchestrator) LoadSession(ctx context.Context) *Session {
	sess := &Session{State: StateNoThread}
	o.loadSettings(ctx, sess)
	return sess
}

// Open loads a session and acquires its thread.
func (o *Orchestrator) Open(ctx context.Context) (*Session, error) {
	sess := o.LoadSession(ctx)
	_, err := o.Acquire(ctx, sess)
	return sess, err
}

func (o *Orchestrator) loadSettings(ctx context.Context, sess *Session) {
	model, err := o.settings.Model(ctx)
	if err != nil {
		o.logger.Warn("failed to load model, using default", zap.Error(err))
	}
	lang, err := o.settings.Language(ctx)
	if err != nil {
		o.logger.Warn("failed to load language, using default", zap.Error(err))
	}
	sess.Model = model
	sess.Language = lang

	provider := models.ProviderFor(model)
	has, err := o.settings.HasCredential(ctx, provider)
	switch {
	case err != nil:
		o.logger.Warn("failed to check API key", zap.String("provider", string(provider)), zap.Error(err))
		sess.Warning = "Failed to initialize AI services"
	case !has:
		sess.Warning = fmt.Sprintf("No API key found for %s. Please add your API key in settings.", provider.DisplayName())
	default:
		sess.Warning = ""
	}
}

// Acquire resolves the active thread for sess. A stored pointer to an
// existing thread is reused; anything else creates a fresh thread. Calling it
// again with a valid pointer to a non-empty thread writes nothing.
//
// The session always ends up with a thread. A non-nil error means the thread
// could not be fully persisted.
func (o *Orchestrator) Acquire(ctx context.Context, sess *Session) (*models.Thread, error) {
	sess.State = StateResolving

	thread, err := o.resolveCurrent(ctx)
	if err == nil && thread != nil {
		if len(thread.Messages) == 0 {
			thread.Append(models.WelcomeMessage(o.now()), o.now())
			if err := o.threads.SaveThread(ctx, *thread); err != nil {
				o.logger.Warn("failed to save welcome message",
					zap.String("threadID", thread.ID),
					zap.Error(err))
			}
		}
		sess.setThread(thread)
		return thread, nil
	}

	if err != nil {
		o.logger.Warn("failed to resolve current thread, recovering", zap.Error(err))
	} else {
		o.logger.Info("no current thread, creating one")
	}
	sess.State = StateRecovering
	thread, err = o.createThread(ctx)
	sess.setThread(thread)
	return thread, err
}

func (o *Orchestrator) resolveCurrent(ctx context.Context) (*models.Thread, error) {
	id, err := o.threads.CurrentThreadID(ctx)
	if err != nil || id == "" {
		return nil, err
	}
	return o.threads.GetThread(ctx, id)
}

// NewThread starts a new conversation and makes it current.
func (o *Orchestrator) NewThread(ctx context.Context, sess *Session) (*models.Thread, error) {
	thread, err := o.createThread(ctx)
	sess.setThread(thread)
	return thread, err
}

// SelectThread points the session at id. An unknown id falls through to a
// new thread, like any dangling pointer.
func (o *Orchestrator) SelectThread(ctx context.Context, sess *Session, id string) (*models.Thread, error) {
	if err := o.threads.SetCurrentThreadID(ctx, id); err != nil {
		return nil, err
	}
	return o.Acquire(ctx, sess)
}

// DeleteThread removes a thread. Deleting the active thread moves the
// session to a new one.
func (o *Orchestrator) DeleteThread(ctx context.Context, sess *Session, id string) error {
	if err := o.threads.DeleteThread(ctx, id); err != nil {
		return err
	}
	current, err := o.threads.CurrentThreadID(ctx)
	if err != nil {
		return err
	}
	if current != id && sess.ThreadID != id {
		return nil
	}
	if err := o.threads.ClearCurrentThreadID(ctx); err != nil {
		return err
	}
	_, err = o.Acquire(ctx, sess)
	return err
}

// ListThreads returns all threads, most recently updated first.
func (o *Orchestrator) ListThreads(ctx context.Context) ([]models.Thread, error) {
	list, err := o.threads.ListThreads(ctx)
	if err != nil {
		return nil, err
	}
	threads.SortByRecent(list)
	return list, nil
}

// Thread returns a stored thread, or nil when there is none.
func (o *Orchestrator) Thread(ctx context.Context, id string) (*models.Thread, error) {
	return o.threads.GetThread(ctx, id)
}

// Resume re-reads settings, drops cached provider clients and re-acquires the
// thread. Requests already running keep their client.
func (o *Orchestrator) Resume(ctx context.Context, sess *Session) (*models.Thread, error) {
	previous := sess.Model
	o.loadSettings(ctx, sess)
	if previous != sess.Model {
		o.logger.Info("model changed",
			zap.String("from", string(previous)),
			zap.String("to", string(sess.Model)))
	}
	if r, ok := o.gen.(Refresher); ok {
		r.Refresh()
	}
	return o.Acquire(ctx, sess)
}

// createThread persists a new empty thread, points the current-thread
// pointer at it and adds the welcome message. The returned thread is never
// nil, even when persisting it failed.
func (o *Orchestrator) createThread(ctx context.Context) (*models.Thread, error) {
	thread := models.NewThread(o.uniqueNow())
	var errs []error
	if err := o.threads.SaveThread(ctx, thread); err != nil {
		errs = append(errs, err)
	}
	if err := o.threads.SetCurrentThreadID(ctx, thread.ID); err != nil {
		errs = append(errs, err)
	}
	thread.Append(models.WelcomeMessage(o.now()), o.now())
	if err := o.threads.SaveThread(ctx, thread); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		o.logger.Error("failed to persist new thread", zap.String("threadID", thread.ID), zap.Error(err))
	} else {
		o.logger.Info("created thread", zap.String("threadID", thread.ID))
	}
	return &thread, err
}

// uniqueNow returns the current time, nudged forward so that two threads
// created within the same millisecond still get distinct ids.
func (o *Orchestrator) uniqueNow() time.Time {
	o.idMu.Lock()
	defer o.idMu.Unlock()
	ms := o.now().UnixMilli()
	if ms <= o.lastIDMs {
		ms = o.lastIDMs + 1
	}
	o.lastIDMs = ms
	return time.UnixMilli(ms)
}

func (o *Orchestrator) newMessage(text string, isUser bool) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Content:   text,
		Timestamp: o.now().UnixMilli(),
		IsUser:    isUser,
	}
}

// persist appends msg to the current thread, re-reading it from the store
// first. If the thread is gone or the save fails, a new thread is created and
// the save is retried once.
func (o *Orchestrator) persist(ctx context.Context, sess *Session, msg models.Message) error {
	var errs []error
	for attempt := 0; ; attempt++ {
		thread, err := o.threadForSave(ctx, sess)
		if err == nil && thread == nil {
			err = fmt.Errorf("thread %q not found", sess.ThreadID)
		}
		if err == nil {
			thread.Append(msg, o.now())
			if err = o.threads.SaveThread(ctx, *thread); err == nil {
				sess.setThread(thread)
				return nil
			}
		}
		errs = append(errs, err)

		if attempt >= maxSaveRetries {
			break
		}
		o.logger.Warn("failed to save message, retrying on a new thread",
			zap.String("threadID", sess.ThreadID),
			zap.Error(err))
		if thread, err := o.createThread(ctx); err != nil {
			errs = append(errs, err)
		} else {
			sess.ThreadID = thread.ID
		}
	}

	err := fmt.Errorf("%w: %w", ErrSaveFailed, errors.Join(errs...))
	o.logger.Error("failed to save message",
		zap.String("messageID", msg.ID),
		zap.Bool("isUser", msg.IsUser),
		zap.Error(err))
	return err
}

// threadForSave loads the thread a new message belongs to. The stored pointer
// wins over the session's id so that a thread switch made elsewhere is
// honoured.
func (o *Orchestrator) threadForSave(ctx context.Context, sess *Session) (*models.Thread, error) {
	id := sess.ThreadID
	stored, err := o.threads.CurrentThreadID(ctx)
	if err != nil {
		return nil, err
	}
	if stored != "" && stored != id {
		o.logger.Info("current thread changed",
			zap.String("from", id),
			zap.String("to", stored))
		id = stored
		sess.ThreadID = stored
	}
	if id == "" {
		return nil, nil
	}
	return o.threads.GetThread(ctx, id)
}

// Submit runs one user turn: save the text, ask the provider, save the reply
// or an error message in its place. Empty input does nothing.
//
// The returned error is non-nil only when a message could not be persisted;
// the exchange is still returned and the reply is still produced.
func (o *Orchestrator) Submit(ctx context.Context, sess *Session, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	user := o.newMessage(text, true)
	ex := &Exchange{User: &user}
	sess.Messages = append(sess.Messages, user)
	var persistErrs []error
	if err := o.persist(ctx, sess, user); err != nil {
		persistErrs = append(persistErrs, err)
	}

	reply, err := o.gen.Send(ctx, sess.Model, text)
	if err != nil {
		o.logger.Warn("generation failed",
			zap.String("model", string(sess.Model)),
			zap.Error(err))
		ex.Failed = err
		reply = ErrorReply(err)
	}

	// The reply is stored even when the caller has gone away, so that every
	// submission leaves exactly one visible answer.
	ex.Reply = o.newMessage(reply, false)
	sess.Messages = append(sess.Messages, ex.Reply)
	if err := o.persist(context.WithoutCancel(ctx), sess, ex.Reply); err != nil {
		persistErrs = append(persistErrs, err)
	}

	if ex.Failed == nil {
		o.synth.Speak(reply, SpeakOptions{Language: sess.Language})
	}

	ex.Persist = errors.Join(persistErrs...)
	return ex, ex.Persist
}

// notify adds an assistant-side notice to the thread, rendered like a reply.
func (o *Orchestrator) notify(ctx context.Context, sess *Session, text string, cause error) (*Exchange, error) {
	ex := &Exchange{Reply: o.newMessage(text, false), Failed: cause}
	sess.Messages = append(sess.Messages, ex.Reply)
	ex.Persist = o.persist(context.WithoutCancel(ctx), sess, ex.Reply)
	return ex, ex.Persist
}
