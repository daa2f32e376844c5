package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"spinwheel/internal/catalog"
	"spinwheel/internal/config"
	"spinwheel/internal/database"
	"spinwheel/internal/metrics"
	"spinwheel/internal/models"
	"spinwheel/internal/notify"
)

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonInvalidInput   Reason = "invalid_input"
	ReasonAlreadyClaimed Reason = "already_claimed"
	ReasonStorageError   Reason = "storage_error"
)

const (
	MsgRequired       = "Name and Email are required."
	MsgInvalidEmail   = "Please enter a valid email address."
	MsgUnknownReward  = "Unknown reward."
	MsgAlreadyClaimed = "You have already spun the wheel with this email address."
	msgDatabaseError  = "Database Error: "
)

type SpinRequest struct {
	Name       string `validate:"notblank"`
	Email      string `validate:"notblank,basicemail"`
	Domain     string
	Discount   int
	CouponCode string
}

// Decision is the outcome of one submission. Allowed is authoritative;
// Message explains a refusal.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
	Detail  string
	Record  *models.SpinRecord
}

// SpinStore is the persistence the service needs. Insert must enforce email
// uniqueness itself and report violations as database.ErrDuplicateEmail.
type SpinStore interface {
	Insert(ctx context.Context, rec *models.SpinRecord) error
	FindByEmail(ctx context.Context, email string) (*models.SpinRecord, error)
}

type Enqueuer interface {
	Enqueue(n notify.Notification) bool
}

type SpinService struct {
	store    SpinStore
	notifier Enqueuer
	strict   bool
	domains  *MailDomainChecker
	validate *validator.Validate
	log      *zap.SugaredLogger
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validEmail applies emailPattern and also rejects Unicode spaces, which
// RE2's \s does not cover.
func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if strings.IndexFunc(s, isSpace) >= 0 {
		return false
	}
	return emailPattern.MatchString(s)
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Zs, r) || r == '\uFEFF'
}

func NewSpinService(cfg *config.Config, store SpinStore, notifier Enqueuer, log *zap.SugaredLogger) *SpinService {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("basicemail", func(fl validator.FieldLevel) bool {
		return validEmail(fl.Field().String())
	})

	s := &SpinService{
		store:    store,
		notifier: notifier,
		strict:   cfg.CatalogStrict,
		validate: v,
		log:      log,
	}
	if cfg.EmailMXCheck {
		s.domains = NewMailDomainChecker(nil, 3*time.Second)
	}
	return s
}

// NormalizeEmail is the uniqueness key for an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SubmitSpin grants at most one coupon per normalized email. The unique
// index on spins.email decides concurrent races; the lookup before it only
// saves a failed insert in the common repeat case.
func (s *SpinService) SubmitSpin(ctx context.Context, req SpinRequest) Decision {
	d := s.submit(ctx, req)

	reason := string(d.Reason)
	if d.Allowed {
		reason = "granted"
	}
	metrics.SpinSubmissions.WithLabelValues(reason).Inc()
	return d
}

func (s *SpinService) submit(ctx context.Context, req SpinRequest) Decision {
	req, msg := s.check(req)
	if msg != "" {
		s.log.Infow("spin rejected", "reason", ReasonInvalidInput, "message", msg)
		return Decision{Reason: ReasonInvalidInput, Message: msg}
	}
	if s.domains != nil && !s.domains.Accepts(ctx, req.Email) {
		s.log.Infow("spin rejected", "reason", ReasonInvalidInput, "message", "mail domain has no MX")
		return Decision{Reason: ReasonInvalidInput, Message: MsgInvalidEmail}
	}

	email := NormalizeEmail(req.Email)

	_, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.log.Infow("spin refused", "email", email, "reason", ReasonAlreadyClaimed)
		return Decision{Reason: ReasonAlreadyClaimed, Message: MsgAlreadyClaimed}
	case !errors.Is(err, database.ErrNotFound):
		return s.storageFailure(email, err)
	}

	rec := &models.SpinRecord{
		Name:       req.Name,
		Email:      email,
		Domain:     req.Domain,
		Discount:   req.Discount,
		CouponCode: req.CouponCode,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			s.log.Infow("spin refused by unique index", "email", email)
			return Decision{Reason: ReasonAlreadyClaimed, Message: MsgAlreadyClaimed}
		}
		return s.storageFailure(email, err)
	}
	s.log.Infow("spin saved", "id", rec.ID, "email", email, "coupon", rec.CouponCode)

	s.notifier.Enqueue(notify.Notification{
		Name:       req.Name,
		Email:      strings.TrimSpace(req.Email),
		Domain:     req.Domain,
		Discount:   req.Discount,
		CouponCode: req.CouponCode,
	})

	return Decision{Allowed: true, Record: rec}
}

// check returns the user-facing message for invalid input, or "". In strict
// mode the reward is replaced with the catalog's canonical segment.
func (s *SpinService) check(req SpinRequest) (SpinRequest, string) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "notblank" {
					return req, MsgRequired
				}
			}
		}
		return req, MsgInvalidEmail
	}

	if s.strict {
		seg, ok := catalog.Lookup(req.Domain, req.Discount, req.CouponCode)
		if !ok {
			return req, MsgUnknownReward
		}
		req.Domain, req.Discount, req.CouponCode = seg.Domain, seg.Discount, seg.CouponCode
	}
	return req, ""
}

func (s *SpinService) storageFailure(email string, err error) Decision {
	s.log.Errorw("spin storage failure", "email", email, "err", err)
	return Decision{
		Reason:  ReasonStorageError,
		Message: msgDatabaseError + err.Error(),
		Detail:  err.Error(),
	}
}
