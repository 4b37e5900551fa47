package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/formflowhq/formflow/internal/apperr"
	"github.com/formflowhq/formflow/internal/models"
)

// SubmissionRepo persists multirespondent submission records. All
// writes are single-document, so a record either exists whole or not
// at all; there is no multi-document transaction anywhere in this
// engine.
type SubmissionRepo struct {
	client     *firestore.Client
	collection string
}

func NewSubmissionRepo(client *firestore.Client, collection string) *SubmissionRepo {
	return &SubmissionRepo{client: client, collection: collection}
}

// Create persists a new record and returns its id. The workflow step
// is forced to 0 and createdAt is stamped here, irrespective of
// anything the caller put in sub.
func (r *SubmissionRepo) Create(ctx context.Context, sub *models.Submission) (string, error) {
	id := uuid.NewString()
	sub.WorkflowStep = 0
	sub.CreatedAt = time.Now().UTC()

	// Create (not Set) so an id collision cannot silently overwrite.
	if _, err := r.client.Collection(r.collection).Doc(id).Create(ctx, sub); err != nil {
		return "", apperr.Storage(fmt.Errorf("create submission: %w", err))
	}
	sub.ID = id
	return id, nil
}

// Get resolves a submission by id, scoped to the given form.
func (r *SubmissionRepo) Get(ctx context.Context, formID, id string) (*models.Submission, error) {
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, apperr.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, apperr.Storage(fmt.Errorf("get submission %s: %w", id, err))
	}

	var sub models.Submission
	if err := snap.DataTo(&sub); err != nil {
		return nil, apperr.Storage(fmt.Errorf("decode submission %s: %w", id, err))
	}
	if sub.FormID != formID {
		return nil, apperr.ErrSubmissionNotFound
	}
	sub.ID = snap.Ref.ID
	return &sub, nil
}

// Update replaces the mutable envelope fields of an existing record.
// Identity fields (formId, createdAt) and attachmentMetadata are never
// touched. There is no optimistic-concurrency check: concurrent
// updates to the same id are last-write-wins.
func (r *SubmissionRepo) Update(ctx context.Context, id string, up models.SubmissionUpdate) error {
	_, err := r.client.Collection(r.collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "submissionPublicKey", Value: up.SubmissionPublicKey},
		{Path: "encryptedSubmissionSecretKey", Value: up.EncryptedSubmissionSecretKey},
		{Path: "encryptedContent", Value: up.EncryptedContent},
		{Path: "version", Value: up.Version},
		{Path: "workflowStep", Value: up.WorkflowStep},
		{Path: "responseMetadata", Value: up.ResponseMetadata},
	})
	if status.Code(err) == codes.NotFound {
		return apperr.ErrSubmissionNotFound
	}
	if err != nil {
		return apperr.Storage(fmt.Errorf("update submission %s: %w", id, err))
	}
	return nil
}

// CountByForm counts stored submissions for a form, used by the
// submission-limit precondition.
func (r *SubmissionRepo) CountByForm(ctx context.Context, formID string) (int64, error) {
	query := r.client.Collection(r.collection).Where("formId", "==", formID)
	results, err := query.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, apperr.Storage(fmt.Errorf("count submissions for form %s: %w", formID, err))
	}

	count, ok := results["all"]
	if !ok {
		return 0, apperr.Storage(fmt.Errorf("count submissions for form %s: missing aggregation result", formID))
	}
	value, ok := count.(*firestorepb.Value)
	if !ok {
		return 0, apperr.Storage(fmt.Errorf("count submissions for form %s: unexpected aggregation type %T", formID, count))
	}
	return value.GetIntegerValue(), nil
}
