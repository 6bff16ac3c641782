package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reciperag/session-cache/internal/domain"
	"github.com/reciperag/session-cache/internal/remote"
)

// imagePlaceholder stands in for inline image data when a remote turn is
// rendered as a local message.
const imagePlaceholder = "[Image uploaded]"

// Fetcher is the slice of the conversation API the reconciler needs.
type Fetcher interface {
	FetchConversation(ctx context.Context, id string) (*remote.Conversation, error)
}

// Reconciler decides, when a conversation is opened by identifier, whether
// the local record, a freshly created one, or an imported remote copy
// becomes authoritative.
type Reconciler struct {
	store   *Store
	fetcher Fetcher
	log     zerolog.Logger
}

// NewReconciler creates a reconciler over the given store and remote fetcher.
func NewReconciler(store *Store, fetcher Fetcher) *Reconciler {
	return &Reconciler{
		store:   store,
		fetcher: fetcher,
		log:     log.With().Str("component", "reconciler").Logger(),
	}
}

// Resume hydrates a session record for openID.
//
// A local record with a matching id wins outright, with no network call.
// Otherwise the remote copy is fetched and imported; any fetch or import
// failure, a not-found answer, or an unauthenticated caller all degrade to a
// fresh local record under openID. Conversation continuity beats surfacing
// transient backend faults, so the only error Resume can return is a local
// persistence failure.
func (r *Reconciler) Resume(ctx context.Context, openID string) (*domain.SessionRecord, error) {
	if rec := r.store.GetCurrent(ctx); rec != nil && rec.ID == openID {
		return r.hydrate(ctx, rec)
	}

	rec := r.importRemote(ctx, openID)
	if rec == nil {
		rec = r.store.Create(nil)
		rec.ID = openID
	}

	if err := r.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return r.hydrate(ctx, rec)
}

// importRemote fetches and translates the remote conversation, or returns
// nil when the caller must fall back to a fresh local record.
func (r *Reconciler) importRemote(ctx context.Context, openID string) *domain.SessionRecord {
	// Guests have no server-held conversations to reconcile against.
	if !r.store.Auth().Authenticated {
		return nil
	}

	conv, err := r.fetcher.FetchConversation(ctx, openID)
	if err != nil {
		r.log.Debug().Err(err).Str("session_id", openID).Msg("remote fetch failed, falling back to fresh session")
		return nil
	}
	if conv == nil {
		return nil
	}

	rec := r.store.Create(nil)
	rec.ID = openID

	for _, turn := range conv.History {
		msg := domain.Message{
			ID:             uuid.NewString(),
			Timestamp:      turn.Timestamp,
			DeliveryStatus: domain.StatusDelivered,
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = rec.CreatedAt
		}

		switch turn.Role {
		case "user":
			msg.Sender = domain.SenderUser
			msg.Content = renderUserParts(turn.Parts)
		case "model":
			msg.Sender = domain.SenderAI
			msg.Content = joinTextParts(turn.Parts)
		default:
			continue
		}
		rec.Messages = append(rec.Messages, msg)
	}

	if conv.RecipeContext != nil {
		rec.CurrentRecipe = SnapshotFromRemote(conv.RecipeContext)
	}
	return rec
}

// renderUserParts keeps text parts and replaces image-bearing parts with a
// literal placeholder, joined with single spaces.
func renderUserParts(parts []remote.Part) string {
	rendered := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.IsImage {
			rendered = append(rendered, imagePlaceholder)
			continue
		}
		rendered = append(rendered, p.Text)
	}
	return strings.Join(rendered, " ")
}

// joinTextParts joins a model turn's text parts with single spaces; image
// parts never occur in model turns and are dropped if present.
func joinTextParts(parts []remote.Part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.IsImage {
			continue
		}
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, " ")
}

// SnapshotFromRemote builds a recipe snapshot from the remote recipe
// context, funneling every ingredient through the normalizer.
func SnapshotFromRemote(rc *remote.RecipeContext) *domain.RecipeSnapshot {
	// tips_variations is the current field name; variations is the legacy
	// one. First match wins.
	tips := rc.TipsVariations
	if len(tips) == 0 {
		tips = rc.Variations
	}

	return &domain.RecipeSnapshot{
		Title:        rc.Title,
		Description:  rc.Description,
		Ingredients:  domain.NormalizeIngredients(rc.Ingredients),
		Instructions: rc.Instructions,
		PrepTime:     domain.Stringify(rc.PrepTime),
		CookTime:     domain.Stringify(rc.CookTime),
		Servings:     rc.Servings,
		Difficulty:   rc.Difficulty,
		Tips:         tips,
	}
}

// hydrate finalizes a record for the conversation UI. A record carrying
// image-analysis data but no messages gets exactly one synthesized welcome
// message; the emptiness check keeps later hydrations of the same record
// from repeating it.
func (r *Reconciler) hydrate(ctx context.Context, rec *domain.SessionRecord) (*domain.SessionRecord, error) {
	if rec.ImageAnalysis == nil || len(rec.ImageAnalysis.Ingredients) == 0 || len(rec.Messages) > 0 {
		return rec, nil
	}

	rec.Messages = append(rec.Messages, domain.Message{
		ID:             uuid.NewString(),
		Sender:         domain.SenderAI,
		Content:        welcomeMessage(rec.ImageAnalysis.Ingredients),
		Timestamp:      r.store.now(),
		DeliveryStatus: domain.StatusDelivered,
	})

	if err := r.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func welcomeMessage(ingredients []string) string {
	return fmt.Sprintf(
		"I've analyzed your photo and detected these ingredients: %s. Ask me for a recipe whenever you're ready!",
		strings.Join(ingredients, ", "),
	)
}
