package maintenance

import (
	"context"
	"strings"

	"github.com/beekhof/crm-records/internal/store"
)

// IssueKind names a class of integrity problem.
type IssueKind string

const (
	MissingTimestamps IssueKind = "Missing timestamp fields"
	InvalidCreatedAt  IssueKind = "Invalid createdAt date"
	MissingRequired   IssueKind = "Missing required fields"
)

// Issue is one problem found on one document.
type Issue struct {
	Collection string    `json:"collection"`
	DocumentID string    `json:"documentId"`
	Kind       IssueKind `json:"issue"`
}

// ValidateDataIntegrity scans IntegrityCollections and reports documents
// lacking createdAt or updatedAt, documents whose createdAt is not a valid
// time, and clients without a name or email. Nothing is repaired.
func (c *Cleaner) ValidateDataIntegrity(ctx context.Context) ([]Issue, error) {
	var issues []Issue
	for _, collection := range IntegrityCollections {
		recs, err := c.store.Query(ctx, collection)
		if err != nil {
			return nil, c.fail("validate", collection, err)
		}
		for _, rec := range recs {
			issues = append(issues, checkDocument(collection, rec)...)
		}
	}
	c.logger.Info("integrity scan complete", "issues", len(issues))
	return issues, nil
}

func checkDocument(collection string, rec store.Record) []Issue {
	var issues []Issue
	report := func(kind IssueKind) {
		issues = append(issues, Issue{Collection: collection, DocumentID: rec.ID, Kind: kind})
	}

	createdAt, hasCreated := present(rec.Data, "createdAt")
	_, hasUpdated := present(rec.Data, "updatedAt")
	if !hasCreated || !hasUpdated {
		report(MissingTimestamps)
	}
	if hasCreated {
		if _, ok := store.TimeValue(createdAt); !ok {
			report(InvalidCreatedAt)
		}
	}
	if collection == store.Clients && (!nonEmpty(rec.Data, "name") || !nonEmpty(rec.Data, "email")) {
		report(MissingRequired)
	}
	return issues
}

func present(doc store.Document, field string) (any, bool) {
	v, ok := doc[field]
	if !ok || v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, false
	}
	return v, true
}

func nonEmpty(doc store.Document, field string) bool {
	s, ok := doc[field].(string)
	return ok && strings.TrimSpace(s) != ""
}
