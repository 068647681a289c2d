package submission

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "submissions"

var columns = []string{
	"id", "kind", "identity_key", "case_id", "fields", "submitted_at", "received_at",
	"is_couple", "partner_present", "existing_cover",
}

// Repository archives submissions so the record store can be rebuilt after a restart
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new submission repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type row struct {
	ID             string                             `db:"id"`
	Kind           string                             `db:"kind"`
	IdentityKey    string                             `db:"identity_key"`
	CaseID         string                             `db:"case_id"`
	Fields         database.JSONB[models.Fields]      `db:"fields"`
	SubmittedAt    time.Time                          `db:"submitted_at"`
	ReceivedAt     time.Time                          `db:"received_at"`
	IsCouple       sql.NullBool                       `db:"is_couple"`
	PartnerPresent bool                               `db:"partner_present"`
	ExistingCover  database.JSONB[map[string]float64] `db:"existing_cover"`
}

func toRow(sub *models.Submission) row {
	r := row{
		ID:             sub.ID,
		Kind:           string(sub.Kind),
		IdentityKey:    sub.IdentityKey,
		CaseID:         sub.CaseID,
		Fields:         database.JSONB[models.Fields]{Data: sub.Fields},
		SubmittedAt:    sub.SubmittedAt.UTC(),
		ReceivedAt:     sub.ReceivedAt.UTC(),
		PartnerPresent: sub.PartnerPresent,
		ExistingCover:  database.JSONB[map[string]float64]{Data: sub.ExistingCover},
	}
	if r.Fields.Data == nil {
		r.Fields.Data = models.Fields{}
	}
	if r.ExistingCover.Data == nil {
		r.ExistingCover.Data = map[string]float64{}
	}
	if sub.IsCouple != nil {
		r.IsCouple = sql.NullBool{Bool: *sub.IsCouple, Valid: true}
	}
	return r
}

func (r row) toSubmission() *models.Submission {
	sub := &models.Submission{
		ID:             r.ID,
		Kind:           models.Kind(r.Kind),
		IdentityKey:    r.IdentityKey,
		CaseID:         r.CaseID,
		Fields:         r.Fields.GetValue(),
		SubmittedAt:    r.SubmittedAt.UTC(),
		ReceivedAt:     r.ReceivedAt.UTC(),
		PartnerPresent: r.PartnerPresent,
	}
	if sub.Fields == nil {
		sub.Fields = models.Fields{}
	}
	if cover := r.ExistingCover.GetValue(); len(cover) > 0 {
		sub.ExistingCover = cover
	}
	if r.IsCouple.Valid {
		couple := r.IsCouple.Bool
		sub.IsCouple = &couple
	}
	return sub
}

func insertQuery(sub *models.Submission) (string, []any) {
	r := toRow(sub)
	ib := database.NewInsertBuilder(table)
	ib.Cols(columns...)
	ib.Values(r.ID, r.Kind, r.IdentityKey, r.CaseID, r.Fields, r.SubmittedAt, r.ReceivedAt, r.IsCouple, r.PartnerPresent, r.ExistingCover)
	// a redelivered kafka message carries the ID of its first archive
	ib.OnConflictDoNothing("id")
	return ib.Build()
}

func listAllQuery() (string, []any) {
	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.OrderBy("submitted_at ASC", "received_at ASC", "id ASC")
	return sb.Build()
}

// Save archives a submission. Saving the same submission id twice is a no-op.
func (r *Repository) Save(ctx context.Context, sub *models.Submission) error {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.Save")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":        "Save",
		"submission_id": sub.ID,
		"identity_key":  sub.IdentityKey,
		"kind":          sub.Kind,
	})

	query, args := insertQuery(sub)
	err := database.Timed("submission.save", func() error {
		_, err := r.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.WithError(err).Error("Failed to archive submission")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to archive submission")
	}

	log.Debug("Archived submission")
	return nil
}

// ListAll returns every archived submission in submission order
func (r *Repository) ListAll(ctx context.Context) ([]*models.Submission, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.Repository.ListAll")
	defer span.End()

	query, args := listAllQuery()
	var rows []row
	err := database.Timed("submission.list_all", func() error {
		return r.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list submissions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list submissions")
	}

	subs := make([]*models.Submission, 0, len(rows))
	for _, rw := range rows {
		subs = append(subs, rw.toSubmission())
	}
	return subs, nil
}
