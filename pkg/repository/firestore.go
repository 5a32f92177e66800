package repository

import (
	"context"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/eduardo5010/study-cycle/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionVariants = "variants"
	collectionUsage    = "variant_usage"
	collectionProfiles = "profiles"
	collectionOutcomes = "outcomes"
	collectionContents = "contents"
)

// Firestore implements Repository on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

var _ Repository = (*Firestore)(nil)

// variantUsage is the stored form of one learner/variant last-use record
type variantUsage struct {
	LearnerID  model.LearnerID `firestore:"learner_id"`
	VariantID  model.VariantID `firestore:"variant_id"`
	LastUsedAt time.Time       `firestore:"last_used_at"`
}

// NewFirestore creates a Firestore repository for the given project and
// database
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutVariant(ctx context.Context, v *model.Variant) error {
	if err := v.Validate(); err != nil {
		return goerr.Wrap(err, "failed to put variant")
	}

	if _, err := r.client.Collection(collectionVariants).Doc(string(v.ID)).Set(ctx, v); err != nil {
		return goerr.Wrap(err, "failed to save variant", goerr.V("variant_id", v.ID))
	}
	return nil
}

func (r *Firestore) ListVariants(ctx context.Context, itemID model.StudyItemID) ([]*model.Variant, error) {
	iter := r.client.Collection(collectionVariants).
		Where("item_id", "==", string(itemID)).
		Documents(ctx)
	defer iter.Stop()

	var variants []*model.Variant
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate variants", goerr.V("item_id", itemID))
		}

		var v model.Variant
		if err := doc.DataTo(&v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode variant", goerr.V("doc_id", doc.Ref.ID))
		}
		variants = append(variants, &v)
	}

	// Sorted here to avoid requiring a composite index on item_id+created_at
	slices.SortStableFunc(variants, func(a, b *model.Variant) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return variants, nil
}

func usageDocID(learnerID model.LearnerID, variantID model.VariantID) string {
	return string(learnerID) + "_" + string(variantID)
}

func (r *Firestore) MarkVariantUsed(ctx context.Context, variantID model.VariantID, learnerID model.LearnerID, at time.Time) error {
	usage := &variantUsage{
		LearnerID:  learnerID,
		VariantID:  variantID,
		LastUsedAt: at,
	}
	if _, err := r.client.Collection(collectionUsage).Doc(usageDocID(learnerID, variantID)).Set(ctx, usage); err != nil {
		return goerr.Wrap(err, "failed to save variant usage",
			goerr.V("variant_id", variantID),
			goerr.V("learner_id", learnerID))
	}
	return nil
}

func (r *Firestore) GetVariantUsage(ctx context.Context, learnerID model.LearnerID, variantIDs []model.VariantID) (map[model.VariantID]time.Time, error) {
	out := make(map[model.VariantID]time.Time)
	if len(variantIDs) == 0 {
		return out, nil
	}

	refs := make([]*firestore.DocumentRef, len(variantIDs))
	for i, id := range variantIDs {
		refs[i] = r.client.Collection(collectionUsage).Doc(usageDocID(learnerID, id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get variant usage", goerr.V("learner_id", learnerID))
	}
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var u variantUsage
		if err := doc.DataTo(&u); err != nil {
			return nil, goerr.Wrap(err, "failed to decode variant usage", goerr.V("doc_id", doc.Ref.ID))
		}
		out[u.VariantID] = u.LastUsedAt
	}
	return out, nil
}

func (r *Firestore) GetProfile(ctx context.Context, learnerID model.LearnerID) (*model.LearnerMemoryProfile, error) {
	doc, err := r.client.Collection(collectionProfiles).Doc(string(learnerID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "profile not found", goerr.V("learner_id", learnerID))
		}
		return nil, goerr.Wrap(err, "failed to get profile", goerr.V("learner_id", learnerID))
	}

	var p model.LearnerMemoryProfile
	if err := doc.DataTo(&p); err != nil {
		return nil, goerr.Wrap(err, "failed to decode profile", goerr.V("learner_id", learnerID))
	}
	return &p, nil
}

func (r *Firestore) PutProfile(ctx context.Context, profile *model.LearnerMemoryProfile) error {
	if err := model.ValidateLambda(profile.Lambda); err != nil {
		return goerr.Wrap(err, "failed to put profile", goerr.V("learner_id", profile.LearnerID))
	}

	if _, err := r.client.Collection(collectionProfiles).Doc(string(profile.LearnerID)).Set(ctx, profile); err != nil {
		return goerr.Wrap(err, "failed to save profile", goerr.V("learner_id", profile.LearnerID))
	}
	return nil
}

func (r *Firestore) PutOutcome(ctx context.Context, ev *model.ReviewOutcomeEvent) error {
	if err := ev.Validate(); err != nil {
		return goerr.Wrap(err, "failed to put outcome")
	}
	if ev.ID == "" {
		return goerr.New("outcome event id is empty", goerr.V("learner_id", ev.LearnerID))
	}

	// Create fails on an existing ID, which keeps the log append-only
	if _, err := r.client.Collection(collectionOutcomes).Doc(string(ev.ID)).Create(ctx, ev); err != nil {
		return goerr.Wrap(err, "failed to save outcome", goerr.V("event_id", ev.ID))
	}
	return nil
}

func (r *Firestore) ListOutcomes(ctx context.Context, q model.OutcomeQuery) ([]*model.ReviewOutcomeEvent, error) {
	query := r.client.Collection(collectionOutcomes).Query
	if q.LearnerID != "" {
		query = query.Where("learner_id", "==", string(q.LearnerID))
	}
	if q.ItemID != "" {
		query = query.Where("item_id", "==", string(q.ItemID))
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var events []*model.ReviewOutcomeEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate outcomes",
				goerr.V("learner_id", q.LearnerID),
				goerr.V("item_id", q.ItemID))
		}

		var ev model.ReviewOutcomeEvent
		if err := doc.DataTo(&ev); err != nil {
			return nil, goerr.Wrap(err, "failed to decode outcome", goerr.V("doc_id", doc.Ref.ID))
		}
		events = append(events, &ev)
	}

	return orderOutcomes(events, q.Limit), nil
}

func (r *Firestore) PutContentOCR(ctx context.Context, id model.ContentID, text string, at time.Time) error {
	_, err := r.client.Collection(collectionContents).Doc(string(id)).Set(ctx, map[string]any{
		"id":               string(id),
		"ocr_text":         text,
		"ocr_processed_at": at,
		"updated_at":       at,
	}, firestore.MergeAll)
	if err != nil {
		return goerr.Wrap(err, "failed to save content OCR", goerr.V("content_id", id))
	}
	return nil
}

func (r *Firestore) GetContent(ctx context.Context, id model.ContentID) (*model.Content, error) {
	doc, err := r.client.Collection(collectionContents).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "content not found", goerr.V("content_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get content", goerr.V("content_id", id))
	}

	var c model.Content
	if err := doc.DataTo(&c); err != nil {
		return nil, goerr.Wrap(err, "failed to decode content", goerr.V("content_id", id))
	}
	return &c, nil
}
