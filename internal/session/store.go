package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reciperag/session-cache/internal/domain"
	"github.com/reciperag/session-cache/internal/storage"
)

// KeyPrefix scopes every entry this subsystem writes. Combined with the
// subject it forms the single storage key a store instance touches.
const KeyPrefix = "reciperag:session:"

// Store owns the single active session record for one subject. It reads and
// writes through whichever backend the selector names for the subject's auth
// state at call time.
//
// Update is a plain read-modify-write with no transactional guarantee across
// overlapping callers: when two updates race, the second save wins and
// silently discards the first's divergent changes. Callers are expected to
// serialize their own mutations; this is deliberately not papered over with
// locking or version counters.
type Store struct {
	selector storage.Selector
	state    storage.AuthState
	now      func() time.Time
	log      zerolog.Logger
}

// NewStore creates a store bound to one subject and auth state.
func NewStore(selector storage.Selector, state storage.AuthState) *Store {
	return &Store{
		selector: selector,
		state:    state,
		now:      time.Now,
		log:      log.With().Str("subject", state.Subject).Logger(),
	}
}

// Auth returns the auth state the store was bound to.
func (s *Store) Auth() storage.AuthState {
	return s.state
}

func (s *Store) key() string {
	return KeyPrefix + s.state.Subject
}

func (s *Store) provider() storage.Provider {
	return s.selector.Pick(s.state)
}

// GetCurrent returns the active session record, or nil when there is none.
// A record that fails to decode or sits past its expiry is purged from its
// backend and reported as absent. GetCurrent never returns an error.
func (s *Store) GetCurrent(ctx context.Context) *domain.SessionRecord {
	p := s.provider()

	raw, err := p.Get(ctx, s.key())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Msg("session read failed, treating as absent")
		}
		return nil
	}

	rec, err := Decode(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("purging corrupt session record")
		_ = p.Delete(ctx, s.key())
		return nil
	}

	if rec.Expired(s.now()) {
		_ = p.Delete(ctx, s.key())
		return nil
	}

	return rec
}

// Create allocates a fresh record with a random id and a fixed 24-hour
// lifetime. It does not persist; call Save explicitly.
func (s *Store) Create(initialIngredients []string) *domain.SessionRecord {
	if initialIngredients == nil {
		initialIngredients = []string{}
	}
	now := s.now()
	return &domain.SessionRecord{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.SessionTTL),
		Ingredients: initialIngredients,
		Messages:    []domain.Message{},
		Refinements: []domain.Refinement{},
	}
}

// Save encodes the record and writes it to the backend selected at call
// time. A capacity failure triggers one quota-recovery pass and exactly one
// retry; a second failure surfaces as *PersistenceError.
func (s *Store) Save(ctx context.Context, rec *domain.SessionRecord) error {
	raw, err := Encode(rec)
	if err != nil {
		return &PersistenceError{Err: err}
	}

	p := s.provider()
	err = p.Set(ctx, s.key(), raw)
	if errors.Is(err, storage.ErrQuotaExceeded) {
		s.recoverFromQuota(ctx, p)
		err = p.Set(ctx, s.key(), raw)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("session save failed")
		return &PersistenceError{Err: err}
	}
	return nil
}

// recoverFromQuota makes one bounded eviction attempt after a capacity
// failure: purge the active record only if it is itself expired or corrupt.
// It never trims message history; losing part of a conversation is worse
// than failing the write.
func (s *Store) recoverFromQuota(ctx context.Context, p storage.Provider) {
	raw, err := p.Get(ctx, s.key())
	if err != nil {
		return
	}
	rec, err := Decode(raw)
	if err != nil || rec.Expired(s.now()) {
		s.log.Info().Msg("evicting stale session record after quota failure")
		_ = p.Delete(ctx, s.key())
	}
}

// Update reads the current record (creating a fresh one if absent), applies
// fn, saves the result, and returns it. This is the single mutation path for
// all higher-level helpers.
func (s *Store) Update(ctx context.Context, fn func(*domain.SessionRecord) *domain.SessionRecord) (*domain.SessionRecord, error) {
	rec := s.GetCurrent(ctx)
	if rec == nil {
		rec = s.Create(nil)
	}
	rec = fn(rec)
	if err := s.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Clear removes the record from the backend currently named by the selector.
func (s *Store) Clear(ctx context.Context) error {
	return s.provider().Delete(ctx, s.key())
}

// AppendMessage appends a message to the conversation, filling in id,
// timestamp, and delivery status when the caller left them empty.
func (s *Store) AppendMessage(ctx context.Context, msg domain.Message) (*domain.SessionRecord, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.DeliveryStatus == "" {
		msg.DeliveryStatus = domain.StatusSent
	}
	return s.Update(ctx, func(rec *domain.SessionRecord) *domain.SessionRecord {
		rec.Messages = append(rec.Messages, msg)
		return rec
	})
}

// SetRecipe replaces the current recipe snapshot. A nil snapshot clears it.
// Ingredients are re-normalized on the way in; normalization is idempotent,
// so already-canonical values pass through unchanged.
func (s *Store) SetRecipe(ctx context.Context, recipe *domain.RecipeSnapshot) (*domain.SessionRecord, error) {
	if recipe != nil {
		normalized := *recipe
		normalized.Ingredients = make([]domain.Ingredient, len(recipe.Ingredients))
		for i, ing := range recipe.Ingredients {
			normalized.Ingredients[i] = domain.NormalizeIngredient(ing)
		}
		recipe = &normalized
	}
	return s.Update(ctx, func(rec *domain.SessionRecord) *domain.SessionRecord {
		rec.CurrentRecipe = recipe
		return rec
	})
}

// SetIngredients replaces the detected-ingredient list.
func (s *Store) SetIngredients(ctx context.Context, ingredients []string) (*domain.SessionRecord, error) {
	if ingredients == nil {
		ingredients = []string{}
	}
	return s.Update(ctx, func(rec *domain.SessionRecord) *domain.SessionRecord {
		rec.Ingredients = ingredients
		return rec
	})
}

// AppendRefinement records a free-text refinement request made before a full
// chat session exists.
func (s *Store) AppendRefinement(ctx context.Context, ref domain.Refinement) (*domain.SessionRecord, error) {
	if ref.Timestamp.IsZero() {
		ref.Timestamp = s.now()
	}
	return s.Update(ctx, func(rec *domain.SessionRecord) *domain.SessionRecord {
		rec.Refinements = append(rec.Refinements, ref)
		return rec
	})
}
