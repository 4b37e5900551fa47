package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/formflowhq/formflow/internal/apperr"
	"github.com/formflowhq/formflow/internal/models"
)

// FormRepo reads form definitions. Forms are owned by the admin
// service; this engine never writes them.
type FormRepo struct {
	client     *firestore.Client
	collection string
}

func NewFormRepo(client *firestore.Client, collection string) *FormRepo {
	return &FormRepo{client: client, collection: collection}
}

func (r *FormRepo) Get(ctx context.Context, id string) (*models.Form, error) {
	snap, err := r.client.Collection(r.collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, apperr.ErrFormNotFound
	}
	if err != nil {
		return nil, apperr.Storage(fmt.Errorf("get form %s: %w", id, err))
	}

	var form models.Form
	if err := snap.DataTo(&form); err != nil {
		return nil, apperr.Storage(fmt.Errorf("decode form %s: %w", id, err))
	}
	form.ID = snap.Ref.ID
	return &form, nil
}
