package records

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/beekhof/crm-records/internal/store"
)

// ClientStatus is the lifecycle state of a client.
type ClientStatus string

const (
	StatusActive   ClientStatus = "active"
	StatusInactive ClientStatus = "inactive"
	StatusPending  ClientStatus = "pending"
)

func (s ClientStatus) valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

// Priority ranks a client account.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Client is a CRM client record.
type Client struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Industry    string       `json:"industry,omitempty"`
	ContactName string       `json:"contactName,omitempty"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone,omitempty"`
	Status      ClientStatus `json:"status,omitempty"`
	Priority    Priority     `json:"priority,omitempty"`
	Address     string       `json:"address,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (c Client) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("client name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return invalid("client email is required")
	}
	if _, err := mail.ParseAddress(c.Email); err != nil {
		return invalid("client email %q: %v", c.Email, err)
	}
	if c.Status != "" && !c.Status.valid() {
		return invalid("client status %q", c.Status)
	}
	if c.Priority != "" && !c.Priority.valid() {
		return invalid("client priority %q", c.Priority)
	}
	return nil
}

func (c Client) document() store.Document {
	return store.Document{
		"name":        c.Name,
		"industry":    c.Industry,
		"contactName": c.ContactName,
		"email":       c.Email,
		"phone":       c.Phone,
		"status":      string(c.Status),
		"priority":    string(c.Priority),
		"address":     c.Address,
		"notes":       c.Notes,
		"createdAt":   c.CreatedAt,
		"updatedAt":   c.UpdatedAt,
	}
}

func clientFromDocument(id string, doc store.Document) Client {
	return Client{
		ID:          id,
		Name:        str(doc, "name"),
		Industry:    str(doc, "industry"),
		ContactName: str(doc, "contactName"),
		Email:       str(doc, "email"),
		Phone:       str(doc, "phone"),
		Status:      ClientStatus(str(doc, "status")),
		Priority:    Priority(str(doc, "priority")),
		Address:     str(doc, "address"),
		Notes:       str(doc, "notes"),
		CreatedAt:   timestamp(doc, "createdAt"),
		UpdatedAt:   timestamp(doc, "updatedAt"),
	}
}

// ClientPatch lists the fields to change in an Update. Nil fields are left
// untouched.
type ClientPatch struct {
	Name        *string       `json:"name,omitempty"`
	Industry    *string       `json:"industry,omitempty"`
	ContactName *string       `json:"contactName,omitempty"`
	Email       *string       `json:"email,omitempty"`
	Phone       *string       `json:"phone,omitempty"`
	Status      *ClientStatus `json:"status,omitempty"`
	Priority    *Priority     `json:"priority,omitempty"`
	Address     *string       `json:"address,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
}

func (p ClientPatch) validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("client name cannot be cleared")
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return invalid("client email %q: %v", *p.Email, err)
		}
	}
	if p.Status != nil && !p.Status.valid() {
		return invalid("client status %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.valid() {
		return invalid("client priority %q", *p.Priority)
	}
	return nil
}

func (p ClientPatch) fields() store.Document {
	fields := store.Document{}
	setString(fields, "name", p.Name)
	setString(fields, "industry", p.Industry)
	setString(fields, "contactName", p.ContactName)
	setString(fields, "email", p.Email)
	setString(fields, "phone", p.Phone)
	setString(fields, "address", p.Address)
	setString(fields, "notes", p.Notes)
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	if p.Priority != nil {
		fields["priority"] = string(*p.Priority)
	}
	return fields
}

func setString(fields store.Document, key string, v *string) {
	if v != nil {
		fields[key] = *v
	}
}

// ClientFilter narrows List. The zero value lists every client.
type ClientFilter struct {
	Status ClientStatus
}

// prefixSentinel is appended to a search term to form the exclusive upper
// bound of a prefix-range scan. It sorts after any character likely to
// appear in a name.
const prefixSentinel = "\uf8ff"

// ClientService reads and writes client records.
type ClientService struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewClientService creates a ClientService over s.
func NewClientService(s store.Store, opts ...Option) *ClientService {
	o := newOptions(opts)
	return &ClientService{store: s, now: o.now, logger: o.logger}
}

// List returns all clients matching filter. Order is unspecified.
func (s *ClientService) List(ctx context.Context, filter ClientFilter) ([]Client, error) {
	var filters []store.Filter
	if filter.Status != "" {
		filters = append(filters, store.Where("status", store.Equal, string(filter.Status)))
	}
	return s.query(ctx, "list", filters...)
}

// Get returns the client with the given id, or ErrNotFound.
func (s *ClientService) Get(ctx context.Context, id string) (*Client, error) {
	doc, err := s.store.Get(ctx, store.Clients, id)
	if err != nil {
		return nil, s.fail("get", id, err)
	}
	c := clientFromDocument(id, doc)
	return &c, nil
}

// Create stores a new client, stamping createdAt and updatedAt, and returns
// the id assigned by the store.
func (s *ClientService) Create(ctx context.Context, c Client) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	id, err := s.store.Add(ctx, store.Clients, c.document())
	if err != nil {
		return "", s.fail("create", "", err)
	}
	s.logger.Debug("created client", "id", id, "name", c.Name)
	return id, nil
}

// Update merges the patch into an existing client and refreshes updatedAt.
// It fails with ErrNotFound if the client does not exist.
func (s *ClientService) Update(ctx context.Context, id string, patch ClientPatch) error {
	if err := patch.validate(); err != nil {
		return err
	}
	fields := patch.fields()
	fields["updatedAt"] = s.now()

	if err := s.store.Update(ctx, store.Clients, id, fields); err != nil {
		return s.fail("update", id, err)
	}
	return nil
}

// Delete removes a client. Deleting a missing client is not an error.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, store.Clients, id); err != nil {
		return s.fail("delete", id, err)
	}
	return nil
}

// SearchByNamePrefix returns clients whose name starts with term, using a
// case-sensitive prefix-range scan.
func (s *ClientService) SearchByNamePrefix(ctx context.Context, term string) ([]Client, error) {
	return s.query(ctx, "search",
		store.Where("name", store.GreaterEqual, term),
		store.Where("name", store.Less, term+prefixSentinel))
}

func (s *ClientService) query(ctx context.Context, op string, filters ...store.Filter) ([]Client, error) {
	found, err := s.store.Query(ctx, store.Clients, filters...)
	if err != nil {
		return nil, s.fail(op, "", err)
	}
	clients := make([]Client, 0, len(found))
	for _, r := range found {
		clients = append(clients, clientFromDocument(r.ID, r.Data))
	}
	return clients, nil
}

func (s *ClientService) fail(op, id string, err error) error {
	return logFailure(s.logger, op, store.Clients, id, err)
}
