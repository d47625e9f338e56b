package broker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"promptcoach/internal/models"
)

const (
	DefaultQuota      = 2
	DefaultResetQuota = 5
	DefaultTimeout    = 30 * time.Second
)

// CredentialStatus is the result of the one-time credential check of a session.
type CredentialStatus struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// RemoteDispatcher is the uniform boundary to the remote text and image capabilities.
type RemoteDispatcher interface {
	DispatchText(ctx context.Context, message string, lang models.Language) (string, error)
	DispatchImage(ctx context.Context, prompt string, lang models.Language) (string, error)
	CheckCredential(ctx context.Context) CredentialStatus
}

type Options struct {
	DefaultLanguage models.Language
	DefaultQuota    int
	ResetQuota      int
	Timeout         time.Duration
	Logger          logrus.FieldLogger
}

// TurnRequest is one inbound user utterance.
type TurnRequest struct {
	Message string
	// ForceImage skips classification and asks for an image of Message.
	ForceImage bool
}

// Broker routes every turn to the remote service or the canned table.
type Broker struct {
	remote     RemoteDispatcher
	classifier *Classifier
	canned     *CannedTable
	opts       Options
	log        logrus.FieldLogger
}

// New builds a broker. A nil remote makes every turn resolve from the canned table.
func New(remote RemoteDispatcher, opts Options) *Broker {
	if _, ok := models.ParseLanguage(string(opts.DefaultLanguage)); !ok {
		opts.DefaultLanguage = models.LanguageES
	}
	if opts.DefaultQuota <= 0 {
		opts.DefaultQuota = DefaultQuota
	}
	if opts.ResetQuota <= 0 {
		opts.ResetQuota = DefaultResetQuota
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Broker{
		remote:     remote,
		classifier: NewClassifier(),
		canned:     NewCannedTable(),
		opts:       opts,
		log:        log.WithField("component", "broker"),
	}
}

// CheckCredential asks the remote side whether its credential is usable.
func (b *Broker) CheckCredential(ctx context.Context) CredentialStatus {
	if b.remote == nil {
		return CredentialStatus{Message: "No API key found in environment variables", Err: ErrCredentialMissing}
	}
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	return b.remote.CheckCredential(ctx)
}

// NewSession starts a session with the default quota. The credential is checked once here;
// an unusable credential disables remote dispatch for the whole session.
func (b *Broker) NewSession(ctx context.Context, id string, lang models.Language) *Session {
	if _, ok := models.ParseLanguage(string(lang)); !ok {
		lang = b.opts.DefaultLanguage
	}
	status := b.CheckCredential(ctx)
	if !status.Valid {
		b.log.WithFields(logrus.Fields{"session": id, "reason": status.Message}).Info("remote dispatch disabled for session")
	}
	return &Session{
		ID:              id,
		Language:        lang,
		quota:           NewQuota(b.opts.DefaultQuota),
		remoteAvailable: status.Valid,
		updatedAt:       time.Now(),
	}
}

// ResetQuota restores the session quota to the manual reset value.
func (b *Broker) ResetQuota(s *Session) int {
	s.quota.Reset(b.opts.ResetQuota)
	return s.quota.Remaining()
}

// HandleTurn resolves one user message and records both turns in the session transcript.
func (b *Broker) HandleTurn(ctx context.Context, s *Session, req TurnRequest) Reply {
	message := strings.TrimSpace(req.Message)
	lang := s.Language

	intent := IntentImage
	if req.ForceImage {
		message = ExplicitImageRequest(message, lang)
	} else {
		intent = b.classifier.Classify(message, lang)
	}

	s.append(models.RoleUser, message)
	reply := b.resolve(ctx, s, message, intent)
	s.append(models.RoleSystem, reply.Content)

	b.log.WithFields(logrus.Fields{
		"session":   s.ID,
		"intent":    intent,
		"source":    reply.Source,
		"remaining": s.quota.Remaining(),
	}).Debug("turn resolved")
	return reply
}

func (b *Broker) resolve(ctx context.Context, s *Session, message string, intent Intent) Reply {
	lang := s.Language
	if b.remote == nil || !s.remoteAvailable || !s.quota.TryReserve() {
		return b.cannedReply(message, lang, SourceCanned)
	}

	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	if intent == IntentImage {
		url, err := b.remote.DispatchImage(ctx, message, lang)
		if err == nil && strings.TrimSpace(url) == "" {
			err = ErrRemoteMalformedResponse
		}
		if err != nil {
			b.log.WithError(err).WithField("session", s.ID).Warn("image dispatch failed")
			if timedOut(ctx, err) {
				return b.cannedReply(message, lang, SourceFallback)
			}
			reply := Format(FailureOutcome(CapabilityImage, err), lang)
			reply.Source = SourceFallback
			return reply
		}
		s.quota.Commit()
		reply := Format(ImageOutcome(url), lang)
		reply.Source = SourceRemote
		return reply
	}

	text, err := b.remote.DispatchText(ctx, message, lang)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrRemoteMalformedResponse
	}
	if err != nil {
		b.log.WithError(err).WithField("session", s.ID).Warn("text dispatch failed")
		return b.cannedReply(message, lang, SourceFallback)
	}
	s.quota.Commit()
	reply := Format(TextOutcome(text), lang)
	reply.Source = SourceRemote
	return reply
}

func (b *Broker) cannedReply(message string, lang models.Language, source ReplySource) Reply {
	reply := Format(TextOutcome(b.canned.Lookup(message, lang)), lang)
	reply.Source = source
	return reply
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
